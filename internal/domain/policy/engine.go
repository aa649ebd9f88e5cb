package policy

import (
	"context"
	"strings"
	"time"

	"github.com/secretgate/secretgate/internal/domain/gatewayerr"
)

// Decision is the outcome of evaluating a policy against one action.
type Decision struct {
	Allowed bool
	Code    gatewayerr.Code
	Message string
}

// ConditionEvaluator evaluates a policy's optional CEL condition against
// a resolved secretId/action/domain triple. Implementations must be
// side-effect-free and bounded (no network, no unbounded compute).
type ConditionEvaluator interface {
	Evaluate(ctx context.Context, condition, secretID, action, domain string) (bool, error)
}

// Store looks policies up by secret identifier.
type Store interface {
	PolicyFor(secretID string) (Policy, bool)
}

// Evaluator implements the six-step (plus optional CEL condition)
// deny-by-default policy algorithm.
type Evaluator struct {
	store     Store
	condition ConditionEvaluator
	now       func() time.Time
}

// NewEvaluator creates an Evaluator backed by store. condition may be nil
// if no policy uses the optional Condition field.
func NewEvaluator(store Store, condition ConditionEvaluator) *Evaluator {
	return &Evaluator{store: store, condition: condition, now: time.Now}
}

// Evaluate runs the ordered algorithm from spec.md §4.3: trim/lowercase
// inputs, reject unknown actions before consulting any policy, then
// check presence, expiry, action membership, domain membership, and
// finally the optional CEL condition. The first failing step wins.
func (e *Evaluator) Evaluate(ctx context.Context, secretID, action, domain string) Decision {
	secretID = strings.TrimSpace(secretID)
	action = strings.ToLower(strings.TrimSpace(action))
	domain = strings.ToLower(strings.TrimSpace(domain))

	if secretID == "" || action == "" || domain == "" {
		return Decision{Code: gatewayerr.InvalidRequest, Message: "secretId, action, and domain are required"}
	}

	if !ValidActions[Action(action)] {
		return Decision{Code: gatewayerr.ForbiddenAction, Message: "unsupported action"}
	}

	pol, ok := e.store.PolicyFor(secretID)
	if !ok {
		return Decision{Code: gatewayerr.NoPolicy, Message: "no policy for secret"}
	}

	now := e.now()
	if pol.IsExpired(now) {
		return Decision{Code: gatewayerr.PolicyExpired, Message: "policy has expired"}
	}

	if !pol.AllowsAction(Action(action)) {
		return Decision{Code: gatewayerr.ForbiddenAction, Message: "action not permitted by policy"}
	}

	if !pol.AllowsDomain(domain) {
		return Decision{Code: gatewayerr.ForbiddenDomain, Message: "domain not permitted by policy"}
	}

	if pol.Condition != "" {
		if e.condition == nil {
			return Decision{Code: gatewayerr.ForbiddenAction, Message: "policy condition not satisfied"}
		}
		ok, err := e.condition.Evaluate(ctx, pol.Condition, secretID, action, domain)
		if err != nil || !ok {
			return Decision{Code: gatewayerr.ForbiddenAction, Message: "policy condition not satisfied"}
		}
	}

	return Decision{Allowed: true}
}
