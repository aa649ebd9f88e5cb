// Package httpaction implements the outbound action executor as a
// constrained HTTP client: one call, no redirects, a fixed deadline,
// and a sanitized response.
package httpaction

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/secretgate/secretgate/internal/domain/action"
	"github.com/secretgate/secretgate/internal/domain/sanitize"
)

const (
	userAgent        = "secretgate/1.0"
	requestTimeout   = 30 * time.Second
	maxBodyBytes     = 10000
	truncationMarker = "... [truncated]"
)

// responseHeaderAllowlist is the fixed set of upstream headers ever
// returned to a caller.
var responseHeaderAllowlist = map[string]bool{
	"content-type":           true,
	"content-length":         true,
	"date":                   true,
	"etag":                   true,
	"cache-control":          true,
	"x-request-id":           true,
	"x-rate-limit-remaining": true,
	"x-rate-limit-reset":     true,
}

// Client executes action.Request values with a single, non-redirecting
// HTTP call.
type Client struct {
	http *http.Client
}

// New creates a Client with the fixed 30 second deadline and redirect
// following disabled.
func New() *Client {
	return &Client{
		http: &http.Client{
			Timeout: requestTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Execute validates req, injects the secret, performs the call, and
// returns a sanitized response. req.SecretValue is never logged,
// audited, or echoed back; it is used only to build the outgoing
// request.
func (c *Client) Execute(ctx context.Context, req action.Request) action.Response {
	if err := action.Validate(req); err != nil {
		return action.Response{StatusCode: 0, StatusText: "invalid_request", Error: err.Message}
	}

	var bodyReader io.Reader
	var contentType string
	if req.Method == action.MethodPost && req.Body != nil {
		encoded, err := json.Marshal(req.Body)
		if err != nil {
			return action.Response{StatusCode: 0, StatusText: "invalid_request", Error: "body is not JSON-serializable"}
		}
		bodyReader = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	outReq, err := http.NewRequestWithContext(ctx, string(req.Method), req.URL, bodyReader)
	if err != nil {
		return action.Response{StatusCode: 0, StatusText: "invalid_request", Error: sanitize.String(err.Error())}
	}

	for k, v := range req.Headers {
		outReq.Header.Set(k, v)
	}
	if contentType != "" {
		outReq.Header.Set("Content-Type", contentType)
	}
	outReq.Header.Set("User-Agent", userAgent)

	switch req.InjectionType {
	case action.InjectionBearer:
		outReq.Header.Set("Authorization", "Bearer "+req.SecretValue)
	case action.InjectionHeader:
		outReq.Header.Set(strings.ToLower(req.HeaderName), req.SecretValue)
	}

	callCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	outReq = outReq.WithContext(callCtx)

	resp, err := c.http.Do(outReq)
	if err != nil {
		if callCtx.Err() != nil {
			return action.Response{StatusCode: 0, StatusText: "timeout", Error: "timeout"}
		}
		return action.Response{StatusCode: 0, StatusText: "network_error", Error: sanitize.String(err.Error())}
	}
	defer resp.Body.Close()

	return action.Response{
		StatusCode: resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Headers:    sanitizeHeaders(resp.Header),
		Body:       sanitizeBody(resp.Body),
	}
}

func sanitizeHeaders(h http.Header) map[string]string {
	out := make(map[string]string)
	for k, v := range h {
		lower := strings.ToLower(k)
		if !responseHeaderAllowlist[lower] || len(v) == 0 {
			continue
		}
		out[lower] = sanitize.String(v[0])
	}
	return out
}

func sanitizeBody(r io.Reader) string {
	buf, _ := io.ReadAll(io.LimitReader(r, maxBodyBytes+1))
	truncated := false
	if len(buf) > maxBodyBytes {
		buf = buf[:maxBodyBytes]
		truncated = true
	}
	text := string(buf)
	if truncated {
		text += truncationMarker
	}
	return sanitize.String(text)
}

// Compile-time interface check.
var _ action.Executor = (*Client)(nil)
