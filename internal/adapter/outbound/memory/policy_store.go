package memory

import (
	"github.com/secretgate/secretgate/internal/domain/policy"
)

// PolicyStore is an immutable, in-memory lookup of policies by secret
// identifier, built once at configuration load.
type PolicyStore struct {
	byID map[string]policy.Policy
}

// NewPolicyStore builds a PolicyStore from the given policies. Callers
// (the configuration validator) are responsible for rejecting duplicate
// secret identifiers before this point.
func NewPolicyStore(policies []policy.Policy) *PolicyStore {
	byID := make(map[string]policy.Policy, len(policies))
	for _, p := range policies {
		byID[p.SecretID] = p
	}
	return &PolicyStore{byID: byID}
}

// PolicyFor returns the policy governing secretID, if any.
func (s *PolicyStore) PolicyFor(secretID string) (policy.Policy, bool) {
	p, ok := s.byID[secretID]
	return p, ok
}

// Compile-time interface check.
var _ policy.Store = (*PolicyStore)(nil)
