package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/secretgate/secretgate/internal/domain/audit"
	"github.com/secretgate/secretgate/internal/domain/gatewayerr"
	"github.com/secretgate/secretgate/internal/domain/policy"
)

func TestDispatch_UnknownTool(t *testing.T) {
	t.Parallel()
	gw := newTestGateway(t, nil)
	d := NewDispatcher(gw)

	result := d.Dispatch(context.Background(), "delete_everything", nil)
	if result.Code != gatewayerr.UnknownTool {
		t.Errorf("Code = %s, want unknown_tool", result.Code)
	}
}

func TestDispatch_DiscoverSecrets(t *testing.T) {
	t.Parallel()
	gw := newTestGateway(t, []policy.Policy{ghPolicy("example.com")})
	d := NewDispatcher(gw)

	result := d.Dispatch(context.Background(), ToolDiscoverSecrets, map[string]interface{}{})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	summaries, ok := result.Result.([]SecretSummary)
	if !ok || len(summaries) != 1 || summaries[0].SecretID != "gh" {
		t.Fatalf("Result = %+v", result.Result)
	}
}

func TestDispatch_DescribePolicy(t *testing.T) {
	t.Parallel()
	gw := newTestGateway(t, []policy.Policy{ghPolicy("example.com")})
	d := NewDispatcher(gw)

	result := d.Dispatch(context.Background(), ToolDescribePolicy, map[string]interface{}{"secretId": "gh"})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	desc, ok := result.Result.(PolicyDescription)
	if !ok || desc.SecretID != "gh" {
		t.Fatalf("Result = %+v", result.Result)
	}
}

func TestDispatch_DescribePolicy_Unknown(t *testing.T) {
	t.Parallel()
	gw := newTestGateway(t, nil)
	d := NewDispatcher(gw)

	result := d.Dispatch(context.Background(), ToolDescribePolicy, map[string]interface{}{"secretId": "ghost"})
	if result.Code != gatewayerr.NoPolicy {
		t.Errorf("Code = %s, want no_policy", result.Code)
	}
}

func TestDispatch_UseSecret(t *testing.T) {
	t.Parallel()
	t.Setenv("GH_TOKEN", "secretvalue")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, err := hostFromURL(srv.URL)
	if err != nil {
		t.Fatal(err)
	}

	gw := newTestGateway(t, []policy.Policy{ghPolicy(host)})
	d := NewDispatcher(gw)

	result := d.Dispatch(context.Background(), ToolUseSecret, map[string]interface{}{
		"secretId": "gh",
		"action": map[string]interface{}{
			"type": "http_get",
			"url":  srv.URL,
		},
	})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestDispatch_UseSecret_MalformedArguments(t *testing.T) {
	t.Parallel()
	gw := newTestGateway(t, nil)
	d := NewDispatcher(gw)

	result := d.Dispatch(context.Background(), ToolUseSecret, map[string]interface{}{
		"secretId": 12345, // wrong type
	})
	if result.Code != gatewayerr.InvalidRequest {
		t.Errorf("Code = %s, want invalid_request", result.Code)
	}
}

func TestDispatch_QueryAudit(t *testing.T) {
	t.Parallel()
	gw := newTestGateway(t, []policy.Policy{ghPolicy("example.com")})
	d := NewDispatcher(gw)

	// Produce one denied entry to query back.
	gw.UseSecret(context.Background(), "gh", ActionInput{Type: "http_get", URL: "https://other.example"})

	result := d.Dispatch(context.Background(), ToolQueryAudit, map[string]interface{}{"secretId": "gh"})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestDispatch_QueryAudit_DefaultsPageSizeWhenOmitted(t *testing.T) {
	t.Parallel()
	gw := newTestGateway(t, []policy.Policy{ghPolicy("example.com")})
	d := NewDispatcher(gw)

	result := d.Dispatch(context.Background(), ToolQueryAudit, map[string]interface{}{})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	page, ok := result.Result.(audit.Page)
	if !ok {
		t.Fatalf("Result type = %T", result.Result)
	}
	if page.PageSize != defaultQueryAuditPageSize {
		t.Errorf("PageSize = %d, want default %d", page.PageSize, defaultQueryAuditPageSize)
	}
}
