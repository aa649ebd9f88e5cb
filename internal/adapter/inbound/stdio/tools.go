package stdio

import "github.com/secretgate/secretgate/internal/service"

// toolSpec is one entry of a tools/list response.
type toolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema inputSchema `json:"inputSchema"`
}

type inputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

// toolList is the fixed, four-entry tool catalog this gateway exposes.
// Schemas mirror the argument shapes dispatcher.go decodes.
var toolList = []toolSpec{
	{
		Name:        service.ToolDiscoverSecrets,
		Description: "List configured secret identifiers and their availability, without ever exposing the underlying environment variable name or value.",
		InputSchema: inputSchema{Type: "object", Properties: map[string]interface{}{}},
	},
	{
		Name:        service.ToolDescribePolicy,
		Description: "Describe the allowed actions, domains, rate limit, and expiry of the policy governing a secret.",
		InputSchema: inputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"secretId": map[string]interface{}{"type": "string"},
			},
			Required: []string{"secretId"},
		},
	},
	{
		Name:        service.ToolUseSecret,
		Description: "Inject a secret into an outbound HTTP request, execute it, and return the sanitized response.",
		InputSchema: inputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"secretId": map[string]interface{}{"type": "string"},
				"action": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"type":          map[string]interface{}{"type": "string", "enum": []string{"http_get", "http_post"}},
						"url":           map[string]interface{}{"type": "string"},
						"headers":       map[string]interface{}{"type": "object"},
						"body":          map[string]interface{}{"type": "object"},
						"injectionType": map[string]interface{}{"type": "string", "enum": []string{"bearer", "header"}},
						"headerName":    map[string]interface{}{"type": "string"},
					},
					"required": []string{"type", "url"},
				},
			},
			Required: []string{"secretId", "action"},
		},
	},
	{
		Name:        service.ToolQueryAudit,
		Description: "Query the audit log with optional secretId/outcome/time-range filters, paginated.",
		InputSchema: inputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"secretId":  map[string]interface{}{"type": "string"},
				"outcome":   map[string]interface{}{"type": "string", "enum": []string{"success", "denied", "error"}},
				"startTime": map[string]interface{}{"type": "string"},
				"endTime":   map[string]interface{}{"type": "string"},
				"page":      map[string]interface{}{"type": "integer"},
				"pageSize":  map[string]interface{}{"type": "integer"},
			},
		},
	},
}
