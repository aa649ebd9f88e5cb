package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	auditadapter "github.com/secretgate/secretgate/internal/adapter/outbound/audit"
	"github.com/secretgate/secretgate/internal/adapter/outbound/httpaction"
	"github.com/secretgate/secretgate/internal/adapter/outbound/memory"
	"github.com/secretgate/secretgate/internal/domain/policy"
	"github.com/secretgate/secretgate/internal/domain/secretmap"
	"github.com/secretgate/secretgate/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func hostFromURL(raw string) (string, error) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return "", errors.New("invalid test URL: " + raw)
	}
	return parsed.Hostname(), nil
}

func newTestDispatcher(t *testing.T, policies []policy.Policy) *service.Dispatcher {
	t.Helper()

	resolver := memory.NewEnvSecretResolver([]secretmap.Mapping{{SecretID: "gh", EnvVar: "GH_TOKEN"}})
	store := memory.NewPolicyStore(policies)
	evaluator := policy.NewEvaluator(store, nil)
	limiter := memory.NewRateLimiter()
	t.Cleanup(limiter.Stop)

	auditStore, err := auditadapter.NewFileStore(auditadapter.Config{Dir: t.TempDir(), MaxSizeMB: 100, MaxAgeDays: 1}, testLogger())
	if err != nil {
		t.Fatalf("NewFileStore() error: %v", err)
	}
	t.Cleanup(func() { _ = auditStore.Close() })

	gw := service.NewGateway(resolver, store, evaluator, limiter, httpaction.New(), auditStore, nil, testLogger())
	return service.NewDispatcher(gw)
}

// runLine feeds one line through the transport and returns the single
// response line it writes back.
func runLine(t *testing.T, d *service.Dispatcher, line string) map[string]interface{} {
	t.Helper()

	in := strings.NewReader(line + "\n")
	var out bytes.Buffer
	transport := NewTransport(d, in, &out, testLogger())

	if err := transport.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	scanner := bufio.NewScanner(&out)
	if !scanner.Scan() {
		t.Fatalf("expected one response line, got none")
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		t.Fatalf("response not valid JSON: %v (%s)", err, scanner.Text())
	}
	return resp
}

func TestTransport_ToolsList(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, nil)

	resp := runLine(t, d, `{"jsonrpc":"2.0","method":"tools/list","id":1}`)

	result, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no result: %+v", resp)
	}
	tools, ok := result["tools"].([]interface{})
	if !ok || len(tools) != 4 {
		t.Fatalf("expected 4 tools, got %+v", result["tools"])
	}
}

func TestTransport_ToolCall_UnknownTool(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, nil)

	resp := runLine(t, d, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"delete_everything","arguments":{}},"id":2}`)

	result := resp["result"].(map[string]interface{})
	if isErr, _ := result["isError"].(bool); !isErr {
		t.Fatalf("expected isError, got %+v", result)
	}
	content := result["content"].([]interface{})[0].(map[string]interface{})
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(content["text"].(string)), &body); err != nil {
		t.Fatalf("content text not valid JSON: %v", err)
	}
	if body.Error.Code != "unknown_tool" {
		t.Errorf("code = %q, want unknown_tool", body.Error.Code)
	}
}

func TestTransport_ToolCall_UseSecretHappyPath(t *testing.T) {
	t.Parallel()
	t.Setenv("GH_TOKEN", "secretvalue")

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, err := hostFromURL(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	d := newTestDispatcher(t, []policy.Policy{{
		SecretID:       "gh",
		AllowedActions: map[policy.Action]bool{policy.ActionHTTPGet: true},
		AllowedDomains: map[string]bool{host: true},
	}})

	line, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "tools/call",
		"id":      3,
		"params": map[string]interface{}{
			"name": "use_secret",
			"arguments": map[string]interface{}{
				"secretId": "gh",
				"action": map[string]interface{}{
					"type": "http_get",
					"url":  srv.URL,
				},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp := runLine(t, d, string(line))
	result := resp["result"].(map[string]interface{})
	if isErr, _ := result["isError"].(bool); isErr {
		t.Fatalf("expected success, got %+v", result)
	}
	if gotAuth != "Bearer secretvalue" {
		t.Errorf("Authorization = %q, want Bearer secretvalue", gotAuth)
	}
}

func TestTransport_MalformedFrame(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, nil)

	resp := runLine(t, d, `not json at all`)
	errObj, ok := resp["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a protocol-level error response, got %+v", resp)
	}
	if code, _ := errObj["code"].(float64); code != rpcParseError {
		t.Errorf("code = %v, want %d", errObj["code"], rpcParseError)
	}
}

func TestTransport_UnknownMethod(t *testing.T) {
	t.Parallel()
	d := newTestDispatcher(t, nil)

	resp := runLine(t, d, `{"jsonrpc":"2.0","method":"notifications/mystery","id":4}`)
	errObj, ok := resp["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected a protocol-level error response, got %+v", resp)
	}
	if code, _ := errObj["code"].(float64); code != rpcMethodNotFound {
		t.Errorf("code = %v, want %d", errObj["code"], rpcMethodNotFound)
	}
}
