package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/secretgate/secretgate/internal/domain/audit"
	"github.com/secretgate/secretgate/internal/domain/gatewayerr"
)

// Tool names as they appear on the wire in tools/call's params.name.
const (
	ToolDiscoverSecrets = "discover_secrets"
	ToolDescribePolicy  = "describe_policy"
	ToolUseSecret       = "use_secret"
	ToolQueryAudit      = "query_audit"
)

// defaultQueryAuditPageSize is used when the caller omits pageSize
// entirely; an explicit 0 or negative value is passed through to the
// audit reader, which clamps it to 1 per spec's boundary rule.
const defaultQueryAuditPageSize = 50

// handler dispatches one tool call's raw arguments against gw.
type handler func(ctx context.Context, gw *Gateway, arguments map[string]interface{}) ToolResult

// dispatchTable maps every registered tool name to its handler. Unknown
// names are the dispatcher's own responsibility (Dispatch), not an
// entry here.
var dispatchTable = map[string]handler{
	ToolDiscoverSecrets: dispatchDiscover,
	ToolDescribePolicy:  dispatchDescribePolicy,
	ToolUseSecret:       dispatchUseSecret,
	ToolQueryAudit:      dispatchQueryAudit,
}

// Dispatcher routes a tool call's name and arguments through the
// Gateway pipeline. It is the single place that maps a wire-level tool
// name to the gateway operation that serves it.
type Dispatcher struct {
	Gateway *Gateway
}

// NewDispatcher wraps gw for table-driven tool routing.
func NewDispatcher(gw *Gateway) *Dispatcher {
	return &Dispatcher{Gateway: gw}
}

// Dispatch runs the named tool against arguments. An unregistered name
// produces unknown_tool; every other outcome comes from the handler
// itself.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, arguments map[string]interface{}) ToolResult {
	h, ok := dispatchTable[name]
	if !ok {
		return ToolResult{Code: gatewayerr.UnknownTool, Message: "unregistered tool: " + name}
	}
	return h(ctx, d.Gateway, arguments)
}

func dispatchDiscover(ctx context.Context, gw *Gateway, _ map[string]interface{}) ToolResult {
	return gw.Discover(ctx)
}

func dispatchDescribePolicy(_ context.Context, gw *Gateway, arguments map[string]interface{}) ToolResult {
	var args struct {
		SecretID string `json:"secretId"`
	}
	if err := decodeArguments(arguments, &args); err != nil {
		return ToolResult{Code: gatewayerr.InvalidRequest, Message: "arguments must be a JSON object with a secretId string"}
	}
	return gw.DescribePolicy(args.SecretID)
}

func dispatchUseSecret(ctx context.Context, gw *Gateway, arguments map[string]interface{}) ToolResult {
	var args struct {
		SecretID string `json:"secretId"`
		Action   struct {
			Type          string                 `json:"type"`
			URL           string                 `json:"url"`
			Headers       map[string]string      `json:"headers"`
			Body          map[string]interface{} `json:"body"`
			InjectionType string                 `json:"injectionType"`
			HeaderName    string                 `json:"headerName"`
		} `json:"action"`
	}
	if err := decodeArguments(arguments, &args); err != nil {
		return ToolResult{Code: gatewayerr.InvalidRequest, Message: "arguments must match {secretId, action}"}
	}

	var body interface{}
	if len(args.Action.Body) > 0 {
		body = args.Action.Body
	}

	return gw.UseSecret(ctx, args.SecretID, ActionInput{
		Type:          args.Action.Type,
		URL:           args.Action.URL,
		Headers:       args.Action.Headers,
		Body:          body,
		InjectionType: args.Action.InjectionType,
		HeaderName:    args.Action.HeaderName,
	})
}

func dispatchQueryAudit(_ context.Context, gw *Gateway, arguments map[string]interface{}) ToolResult {
	var args struct {
		SecretID  string  `json:"secretId"`
		Outcome   string  `json:"outcome"`
		StartTime *string `json:"startTime"`
		EndTime   *string `json:"endTime"`
		Page      int     `json:"page"`
		PageSize  int     `json:"pageSize"`
	}
	if err := decodeArguments(arguments, &args); err != nil {
		return ToolResult{Code: gatewayerr.InvalidRequest, Message: "malformed query_audit arguments"}
	}

	pageSize := args.PageSize
	if _, specified := arguments["pageSize"]; !specified {
		pageSize = defaultQueryAuditPageSize
	}

	filter := audit.Filter{
		SecretID: args.SecretID,
		Outcome:  audit.Outcome(args.Outcome),
		Page:     args.Page,
		PageSize: pageSize,
	}
	if t, ok := parseRFC3339(args.StartTime); ok {
		filter.StartTime = t
	}
	if t, ok := parseRFC3339(args.EndTime); ok {
		filter.EndTime = t
	}

	return gw.QueryAudit(filter)
}

// decodeArguments decodes a generic JSON-object arguments map into a
// concrete struct via a marshal/unmarshal round trip, so each handler
// gets a typed view without hand-written field-by-field extraction.
func decodeArguments(arguments map[string]interface{}, dest interface{}) error {
	raw, err := json.Marshal(arguments)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func parseRFC3339(s *string) (*time.Time, bool) {
	if s == nil || *s == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, false
	}
	return &t, true
}
