package service

import (
	"context"
	"sort"

	"github.com/secretgate/secretgate/internal/domain/audit"
	"github.com/secretgate/secretgate/internal/domain/gatewayerr"
)

// SecretSummary is one entry of the discover tool's result: enough to
// let a caller choose a secretId, never the environment variable name
// or the resolved value.
type SecretSummary struct {
	SecretID    string `json:"secretId"`
	Available   bool   `json:"available"`
	Description string `json:"description,omitempty"`
}

// Discover lists every configured secret identifier enriched with its
// current availability and description.
func (g *Gateway) Discover(ctx context.Context) ToolResult {
	ids := g.Resolver.ListSecretIDs()
	summaries := make([]SecretSummary, 0, len(ids))
	for _, id := range ids {
		description, _ := g.Resolver.Describe(id)
		summaries = append(summaries, SecretSummary{
			SecretID:    id,
			Available:   g.Resolver.IsAvailable(ctx, id),
			Description: description,
		})
	}
	return ToolResult{Success: true, Result: summaries}
}

// PolicyDescription is the describe_policy tool's result: the rules
// governing one secret identifier, never the secret value itself.
type PolicyDescription struct {
	SecretID       string     `json:"secretId"`
	AllowedActions []string   `json:"allowedActions"`
	AllowedDomains []string   `json:"allowedDomains"`
	RateLimit      *rateLimit `json:"rateLimit,omitempty"`
	ExpiresAt      *string    `json:"expiresAt,omitempty"`
}

type rateLimit struct {
	Requests      int `json:"requests"`
	WindowSeconds int `json:"windowSeconds"`
}

// DescribePolicy resolves the policy governing secretID and reports
// its allowed actions, allowed domains, and optional rate limit and
// expiry.
func (g *Gateway) DescribePolicy(secretID string) ToolResult {
	pol, ok := g.Policies.PolicyFor(secretID)
	if !ok {
		return ToolResult{Code: gatewayerr.NoPolicy, Message: "no policy for secret"}
	}

	actions := make([]string, 0, len(pol.AllowedActions))
	for a := range pol.AllowedActions {
		actions = append(actions, string(a))
	}
	sort.Strings(actions)

	domains := make([]string, 0, len(pol.AllowedDomains))
	for d := range pol.AllowedDomains {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	desc := PolicyDescription{
		SecretID:       secretID,
		AllowedActions: actions,
		AllowedDomains: domains,
	}
	if pol.RateLimit != nil {
		desc.RateLimit = &rateLimit{Requests: pol.RateLimit.Requests, WindowSeconds: pol.RateLimit.WindowSeconds}
	}
	if pol.ExpiresAt != nil {
		formatted := pol.ExpiresAt.UTC().Format("2006-01-02T15:04:05.000Z")
		desc.ExpiresAt = &formatted
	}

	return ToolResult{Success: true, Result: desc}
}

// QueryAudit answers a paginated query over the audit log.
func (g *Gateway) QueryAudit(filter audit.Filter) ToolResult {
	page, err := g.Audit.Query(filter)
	if err != nil {
		return ToolResult{Code: gatewayerr.ExecutionFailed, Message: "audit query failed"}
	}
	return ToolResult{Success: true, Result: page}
}
