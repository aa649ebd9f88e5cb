// Package secretmap contains domain types for secret identifier to
// environment variable bindings.
package secretmap

import "regexp"

// secretIDPattern validates secret identifiers: 1-100 chars, alphanumeric
// plus underscore/hyphen.
var secretIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// envVarPattern validates environment variable names.
var envVarPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Mapping binds an opaque secret identifier to the environment variable
// that holds its value. Immutable once constructed; the value itself is
// never stored here.
type Mapping struct {
	// SecretID is the opaque, caller-visible handle for this secret.
	SecretID string
	// EnvVar is the host process environment variable name that holds
	// the secret's value at resolution time.
	EnvVar string
	// Description is an optional human-readable note. Never sensitive.
	Description string
}

// ValidSecretID reports whether id matches the secret identifier shape.
func ValidSecretID(id string) bool {
	return secretIDPattern.MatchString(id)
}

// ValidEnvVar reports whether name matches the environment variable name
// shape required of a mapping's EnvVar field.
func ValidEnvVar(name string) bool {
	return envVarPattern.MatchString(name)
}
