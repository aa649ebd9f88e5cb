// Package service implements the request-mediation pipeline: the
// deterministic chain that turns one tool invocation into either an
// authorized, rate-limited, audited outbound HTTP call or a structured
// denial, plus the table-driven dispatcher that routes the four tool
// calls through it.
package service

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/secretgate/secretgate/internal/domain/action"
	"github.com/secretgate/secretgate/internal/domain/audit"
	"github.com/secretgate/secretgate/internal/domain/gatewayerr"
	"github.com/secretgate/secretgate/internal/domain/policy"
	"github.com/secretgate/secretgate/internal/domain/ratelimit"
	"github.com/secretgate/secretgate/internal/domain/secretmap"
)

// ActionInput is the caller-supplied shape of use_secret's action
// argument.
type ActionInput struct {
	Type          string
	URL           string
	Headers       map[string]string
	Body          interface{}
	InjectionType string
	HeaderName    string
}

// ToolResult is the outcome of any of the four tool operations. Exactly
// one of Result or (Code, Message) is meaningful, mirroring the
// success/denial envelope described in spec.md §6.
type ToolResult struct {
	Success bool
	Result  interface{}
	Code    gatewayerr.Code
	Message string
}

// Gateway wires the policy evaluator, rate limiter, secret resolver,
// action executor, and audit store into the pipeline described in
// spec.md §2: validate, rate-limit, check secret availability,
// evaluate policy, resolve the secret value, execute the action, and
// audit the outcome.
type Gateway struct {
	Resolver     secretmap.Resolver
	Policies     policy.Store
	Evaluator    *policy.Evaluator
	Limiter      ratelimit.Limiter
	Executor     action.Executor
	Audit        audit.Store
	DefaultLimit *ratelimit.Config
	Logger       *slog.Logger

	// now is overridable in tests; defaults to time.Now.
	now func() time.Time
}

// NewGateway builds a Gateway from its component ports. logger must be
// non-nil; callers typically pass a request-scoped child of the
// process logger.
func NewGateway(resolver secretmap.Resolver, policies policy.Store, evaluator *policy.Evaluator, limiter ratelimit.Limiter, executor action.Executor, auditStore audit.Store, defaultLimit *ratelimit.Config, logger *slog.Logger) *Gateway {
	return &Gateway{
		Resolver:     resolver,
		Policies:     policies,
		Evaluator:    evaluator,
		Limiter:      limiter,
		Executor:     executor,
		Audit:        auditStore,
		DefaultLimit: defaultLimit,
		Logger:       logger,
		now:          time.Now,
	}
}

func (g *Gateway) clock() time.Time {
	if g.now != nil {
		return g.now()
	}
	return time.Now()
}

// UseSecret runs the full mediation pipeline for one use_secret
// invocation.
func (g *Gateway) UseSecret(ctx context.Context, secretID string, in ActionInput) ToolResult {
	requestID := uuid.New().String()
	logger := g.Logger.With("request_id", requestID, "secret_id", secretID)

	secretID = strings.TrimSpace(secretID)
	actionType := strings.ToLower(strings.TrimSpace(in.Type))
	injectionType := action.InjectionType(strings.ToLower(strings.TrimSpace(in.InjectionType)))
	if injectionType == "" {
		injectionType = action.InjectionBearer
	}

	domain, domainOK := hostOf(in.URL)

	// Input validator: request shape only. Business rules (action
	// vocabulary, domain membership) are the policy evaluator's job
	// further down the pipeline.
	if secretID == "" {
		return g.deny(secretID, actionType, domain, "", gatewayerr.InvalidRequest, "secretId is required")
	}
	if !domainOK {
		return g.deny(secretID, actionType, "", "", gatewayerr.InvalidURL, "url must be an absolute http(s) URL")
	}
	if injectionType != action.InjectionBearer && injectionType != action.InjectionHeader {
		return g.deny(secretID, actionType, domain, "", gatewayerr.InvalidInjectionType, "injectionType must be bearer or header")
	}
	if injectionType == action.InjectionHeader && strings.TrimSpace(in.HeaderName) == "" {
		return g.deny(secretID, actionType, domain, "", gatewayerr.InvalidInjectionType, "headerName is required for header injection")
	}

	limitCfg := g.rateLimitFor(secretID)
	if limitCfg != nil {
		result, err := g.Limiter.CheckLimit(secretID, *limitCfg, g.clock())
		if err != nil {
			if gerr, ok := err.(*gatewayerr.Error); ok {
				return g.deny(secretID, actionType, domain, "", gerr.Code, gerr.Message)
			}
			return g.deny(secretID, actionType, domain, "", gatewayerr.ExecutionFailed, "rate limit check failed")
		}
		if !result.Allowed {
			return g.deny(secretID, actionType, domain, "", gatewayerr.RateLimited, "rate limit exceeded")
		}
	}

	if _, known := g.Resolver.Describe(secretID); !known {
		return g.deny(secretID, actionType, domain, "", gatewayerr.UnknownSecret, "secret identifier is not mapped")
	}
	if !g.Resolver.IsAvailable(ctx, secretID) {
		return g.deny(secretID, actionType, domain, "", gatewayerr.MissingEnv, "secret's environment variable is not set")
	}

	decision := g.Evaluator.Evaluate(ctx, secretID, actionType, domain)
	if !decision.Allowed {
		return g.deny(secretID, actionType, domain, "", decision.Code, decision.Message)
	}

	value, ok := g.Resolver.ResolveValue(ctx, secretID)
	if !ok {
		return g.deny(secretID, actionType, domain, "", gatewayerr.MissingEnv, "secret's environment variable is not set")
	}

	method, _ := actionMethod(actionType)
	req := action.Request{
		Method:        method,
		URL:           in.URL,
		Headers:       in.Headers,
		Body:          in.Body,
		SecretValue:   value,
		InjectionType: injectionType,
		HeaderName:    in.HeaderName,
	}

	resp := g.Executor.Execute(ctx, req)
	if resp.StatusCode == 0 && resp.Error != "" {
		code := gatewayerr.ExecutionFailed
		if resp.StatusText == "timeout" {
			code = gatewayerr.Timeout
		}
		g.writeAudit(secretID, actionType, domain, string(method), audit.OutcomeError, resp.StatusText)
		logger.Error("action execution failed", "status_text", resp.StatusText, "code", code)
		return ToolResult{Code: code, Message: resp.Error}
	}

	g.writeAudit(secretID, actionType, domain, string(method), audit.OutcomeSuccess, "ok")
	logger.Info("action executed", "status_code", resp.StatusCode)
	return ToolResult{Success: true, Result: resp}
}

// rateLimitFor returns the rate limit configuration that governs
// secretID: the policy's own override if one exists, otherwise the
// configured process-wide default, otherwise nil (no limit enforced).
func (g *Gateway) rateLimitFor(secretID string) *ratelimit.Config {
	if pol, ok := g.Policies.PolicyFor(secretID); ok && pol.RateLimit != nil {
		return &ratelimit.Config{Limit: pol.RateLimit.Requests, WindowSeconds: pol.RateLimit.WindowSeconds}
	}
	return g.DefaultLimit
}

func (g *Gateway) deny(secretID, actionType, domain, method string, code gatewayerr.Code, message string) ToolResult {
	g.writeAudit(secretID, actionType, domain, method, audit.OutcomeDenied, message)
	return ToolResult{Code: code, Message: message}
}

func (g *Gateway) writeAudit(secretID, actionType, domain, method string, outcome audit.Outcome, reason string) {
	entry := audit.Entry{
		Timestamp: g.clock().UTC(),
		SecretID:  secretID,
		Action:    actionType,
		Outcome:   outcome,
		Reason:    reason,
		Domain:    domain,
		Method:    method,
	}
	if err := g.Audit.Write(entry); err != nil {
		g.Logger.Error("audit write failed", "error", err.Error())
	}
}

// hostOf parses rawURL as an absolute http(s) URL and returns its
// lowercased hostname. ok is false for anything else, including
// relative URLs and non-HTTP schemes.
func hostOf(rawURL string) (string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return "", false
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", false
	}
	return strings.ToLower(parsed.Hostname()), true
}

// actionMethod maps an action kind to the HTTP method the executor
// should use. ok is false for anything outside the closed vocabulary;
// callers only reach this after the policy evaluator has already
// confirmed membership, so a false here never surfaces to a caller.
func actionMethod(actionType string) (action.Method, bool) {
	switch policy.Action(actionType) {
	case policy.ActionHTTPGet:
		return action.MethodGet, true
	case policy.ActionHTTPPost:
		return action.MethodPost, true
	default:
		return "", false
	}
}
