// Package policy contains domain types for secret access policy
// evaluation: the deny-by-default matcher over actions, domains,
// expiry, and rate limits described in the gateway's mediation pipeline.
package policy

import "time"

// Action identifies one of the closed set of outbound action kinds a
// policy can authorize.
type Action string

const (
	// ActionHTTPGet authorizes an outbound GET request.
	ActionHTTPGet Action = "http_get"
	// ActionHTTPPost authorizes an outbound POST request.
	ActionHTTPPost Action = "http_post"
)

// ValidActions is the global action vocabulary. An action outside this
// set is rejected before any per-secret policy is consulted.
var ValidActions = map[Action]bool{
	ActionHTTPGet:  true,
	ActionHTTPPost: true,
}

// RateLimit is a policy's optional per-secret request budget.
type RateLimit struct {
	// Requests is the maximum number of allowed requests per window.
	Requests int
	// WindowSeconds is the sliding window length in seconds.
	WindowSeconds int
}

// Policy is the set of rules gating use_secret for exactly one secret
// identifier. Immutable after configuration load.
type Policy struct {
	// SecretID is the secret identifier this policy governs.
	SecretID string
	// AllowedActions is the non-empty set of action kinds this policy
	// authorizes.
	AllowedActions map[Action]bool
	// AllowedDomains is the non-empty set of exact, lowercase FQDNs this
	// policy authorizes. No wildcards.
	AllowedDomains map[string]bool
	// RateLimit is the optional per-secret request budget. Nil means no
	// policy-specific limit (the gateway's default limit, if any, still
	// applies).
	RateLimit *RateLimit
	// ExpiresAt is the optional instant after which this policy denies
	// every request. Nil means the policy never expires.
	ExpiresAt *time.Time
	// Condition is an optional CEL expression evaluated after the six
	// exact-match checks pass. Empty means no additional condition.
	Condition string
}

// IsExpired reports whether the policy is expired as of now. Expiry at
// exactly now counts as expired (the stricter of two historical
// revisions; see DESIGN.md Open Question 1).
func (p Policy) IsExpired(now time.Time) bool {
	if p.ExpiresAt == nil {
		return false
	}
	return !p.ExpiresAt.After(now)
}

// AllowsAction reports whether action is in this policy's allowed set.
func (p Policy) AllowsAction(a Action) bool {
	return p.AllowedActions[a]
}

// AllowsDomain reports whether domain (already lowercased) is an exact
// member of this policy's allowed domain set.
func (p Policy) AllowsDomain(domain string) bool {
	return p.AllowedDomains[domain]
}
