// Package stdio provides the stdio transport adapter: a newline-delimited
// JSON-RPC loop over stdin/stdout that dispatches tools/call and
// tools/list requests directly against the gateway, with no upstream
// process to forward to.
package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/secretgate/secretgate/internal/domain/gatewayerr"
	"github.com/secretgate/secretgate/internal/service"
	"github.com/secretgate/secretgate/pkg/mcp"
)

// JSON-RPC 2.0 reserved error codes used for protocol-level failures
// (as opposed to tool-level failures, which are reported inside a
// successful result per the content[] envelope).
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
)

// Transport is the inbound adapter that reads newline-delimited
// JSON-RPC requests from in, dispatches tools/call and tools/list
// directly against dispatcher, and writes responses to out. It blocks
// until ctx is cancelled or in reaches EOF.
type Transport struct {
	dispatcher *service.Dispatcher
	in         io.Reader
	out        io.Writer
	logger     *slog.Logger
}

// NewTransport builds a Transport reading from in and writing to out.
func NewTransport(dispatcher *service.Dispatcher, in io.Reader, out io.Writer, logger *slog.Logger) *Transport {
	return &Transport{dispatcher: dispatcher, in: in, out: out, logger: logger}
}

// Start runs the read-dispatch-write loop. It returns nil on a clean
// EOF or context cancellation, and a non-nil error only for a scan
// failure (e.g. a line exceeding the scanner's buffer).
func (t *Transport) Start(ctx context.Context) error {
	scanner := bufio.NewScanner(t.in)
	buf := make([]byte, 0, 256*1024) // 256KB initial
	scanner.Buffer(buf, 1024*1024)   // 1MB max

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		raw := append([]byte(nil), scanner.Bytes()...)
		if len(raw) == 0 {
			continue
		}

		t.handleLine(ctx, raw)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stdio transport: scan error: %w", err)
	}
	return nil
}

func (t *Transport) handleLine(ctx context.Context, raw []byte) {
	msg, err := mcp.Wrap(raw)
	if err != nil {
		t.logger.Debug("failed to decode incoming message", "error", err)
		t.write(jsonRPCError(nil, rpcParseError, "invalid JSON-RPC message"))
		return
	}

	if !msg.IsRequest() {
		// Responses and notifications with no method are silently
		// dropped: this transport has no outbound requests of its own
		// to correlate a response against.
		return
	}

	id := msg.RawID()

	switch {
	case msg.IsToolsList():
		t.write(jsonRPCResult(id, map[string]interface{}{"tools": toolList}))
	case msg.IsToolCall():
		t.handleToolCall(ctx, id, msg)
	default:
		t.write(jsonRPCError(id, rpcMethodNotFound, "unknown method: "+msg.Method()))
	}
}

func (t *Transport) handleToolCall(ctx context.Context, id json.RawMessage, msg *mcp.Message) {
	params := msg.ParseParams()
	if params == nil {
		t.write(jsonRPCError(id, rpcInvalidRequest, "params must be a JSON object with name and arguments"))
		return
	}

	name, _ := params["name"].(string)
	if name == "" {
		t.write(jsonRPCError(id, rpcInvalidRequest, "params.name is required"))
		return
	}

	arguments, _ := params["arguments"].(map[string]interface{})
	if arguments == nil {
		arguments = map[string]interface{}{}
	}

	result := t.dispatcher.Dispatch(ctx, name, arguments)
	t.logResult(ctx, name, result)
	t.write(jsonRPCResult(id, encodeToolResult(result)))
}

func (t *Transport) logResult(ctx context.Context, name string, result service.ToolResult) {
	if result.Success {
		t.logger.DebugContext(ctx, "tool call succeeded", "tool", name)
		return
	}
	level := slog.LevelWarn
	if result.Code == gatewayerr.ExecutionFailed || result.Code == "" {
		level = slog.LevelError
	}
	t.logger.Log(ctx, level, "tool call denied or failed", "tool", name, "code", result.Code)
}

func (t *Transport) write(payload []byte) {
	if _, err := t.out.Write(payload); err != nil {
		t.logger.Error("stdio transport: write failed", "error", err)
		return
	}
	if _, err := t.out.Write([]byte("\n")); err != nil {
		t.logger.Error("stdio transport: write newline failed", "error", err)
	}
}
