// Package memory provides in-memory and environment-backed implementations
// of outbound domain ports.
package memory

import (
	"context"
	"os"
	"sort"
	"strings"

	"github.com/secretgate/secretgate/internal/domain/secretmap"
)

// EnvSecretResolver resolves secret identifiers against the host process
// environment using a fixed set of mappings established at configuration
// load time. It holds no secret values itself; every lookup reads the
// environment directly so rotated values are observed without restart.
type EnvSecretResolver struct {
	byID map[string]secretmap.Mapping
	ids  []string
}

// NewEnvSecretResolver builds a resolver from the given mappings. Mapping
// order is not significant; ListSecretIDs always returns a sorted view.
func NewEnvSecretResolver(mappings []secretmap.Mapping) *EnvSecretResolver {
	byID := make(map[string]secretmap.Mapping, len(mappings))
	ids := make([]string, 0, len(mappings))
	for _, m := range mappings {
		byID[m.SecretID] = m
		ids = append(ids, m.SecretID)
	}
	sort.Strings(ids)
	return &EnvSecretResolver{byID: byID, ids: ids}
}

// ListSecretIDs returns all configured secret identifiers, sorted.
func (r *EnvSecretResolver) ListSecretIDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// IsAvailable reports whether id is mapped and its environment variable
// currently holds a non-empty value.
func (r *EnvSecretResolver) IsAvailable(_ context.Context, id string) bool {
	_, ok := r.ResolveValue(context.Background(), id)
	return ok
}

// ResolveValue returns the current environment value bound to id.
func (r *EnvSecretResolver) ResolveValue(_ context.Context, id string) (string, bool) {
	m, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return "", false
	}
	val := os.Getenv(m.EnvVar)
	if val == "" {
		return "", false
	}
	return val, true
}

// Describe returns the mapping's description for id.
func (r *EnvSecretResolver) Describe(id string) (string, bool) {
	m, ok := r.byID[strings.TrimSpace(id)]
	if !ok {
		return "", false
	}
	return m.Description, true
}

// Compile-time interface check.
var _ secretmap.Resolver = (*EnvSecretResolver)(nil)
