package secretmap

import "context"

// Resolver resolves secret identifiers to their current environment
// value. Implementations must never log, cache, or return the resolved
// value through any channel other than the direct return value of
// ResolveValue.
type Resolver interface {
	// ListSecretIDs returns all configured secret identifiers, sorted.
	ListSecretIDs() []string

	// IsAvailable reports whether id has a mapping and its environment
	// variable currently holds a non-empty value. Unknown ids report
	// false; they never error.
	IsAvailable(ctx context.Context, id string) bool

	// ResolveValue returns the current environment value for id and
	// true, or ("", false) if id is unknown or its environment variable
	// is unset/empty.
	ResolveValue(ctx context.Context, id string) (string, bool)

	// Describe returns the mapping's description (may be empty) and
	// true if id is known.
	Describe(id string) (description string, ok bool)
}
