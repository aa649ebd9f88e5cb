package stdio

import (
	"encoding/json"

	"github.com/secretgate/secretgate/internal/domain/gatewayerr"
	"github.com/secretgate/secretgate/internal/service"
)

// content is one entry of an MCP tool result's content array. Only the
// text type is used; this gateway never returns structured/binary
// content.
type content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// toolEnvelope is the "result" field of a tools/call JSON-RPC response,
// shaped per spec's success/error envelope.
type toolEnvelope struct {
	Content []content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// toolErrorBody is the text content of an error envelope.
type toolErrorBody struct {
	Error toolErrorDetail `json:"error"`
}

type toolErrorDetail struct {
	Code    gatewayerr.Code `json:"code"`
	Message string          `json:"message"`
}

// encodeToolResult turns a Gateway/Dispatcher outcome into the content[]
// envelope described for tools/call responses. Marshal failures on an
// already-validated Go value are a programming error, not something a
// caller can act on, so they fall back to execution_failed rather than
// panicking.
func encodeToolResult(result service.ToolResult) toolEnvelope {
	if result.Success {
		text, err := json.Marshal(result.Result)
		if err != nil {
			return errorEnvelope(gatewayerr.ExecutionFailed, "failed to encode result")
		}
		return toolEnvelope{Content: []content{{Type: "text", Text: string(text)}}}
	}
	return errorEnvelope(result.Code, result.Message)
}

func errorEnvelope(code gatewayerr.Code, message string) toolEnvelope {
	body := toolErrorBody{Error: toolErrorDetail{Code: code, Message: message}}
	text, err := json.Marshal(body)
	if err != nil {
		text = []byte(`{"error":{"code":"execution_failed","message":"failed to encode error"}}`)
	}
	return toolEnvelope{Content: []content{{Type: "text", Text: string(text)}}, IsError: true}
}

// jsonRPCResult builds a successful JSON-RPC 2.0 response carrying
// result as its "result" field, preserving id verbatim (it is already
// raw JSON, extracted via Message.RawID to sidestep the SDK ID type's
// interface{} marshaling quirks).
func jsonRPCResult(id json.RawMessage, result interface{}) []byte {
	resp := map[string]interface{}{
		"jsonrpc": "2.0",
		"result":  result,
		"id":      rawOrNull(id),
	}
	b, _ := json.Marshal(resp)
	return b
}

// jsonRPCError builds a JSON-RPC 2.0 protocol-level error response
// (parse errors, unknown methods) as opposed to a tool-level error,
// which is reported inside a successful result per jsonRPCResult.
func jsonRPCError(id json.RawMessage, code int, message string) []byte {
	resp := map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
		"id": rawOrNull(id),
	}
	b, _ := json.Marshal(resp)
	return b
}

func rawOrNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
