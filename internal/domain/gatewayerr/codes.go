// Package gatewayerr defines the closed error code taxonomy shared by
// every component that can deny or fail a tool invocation. Keeping the
// set in one place is deliberate: validator, sanitizer, evaluator, and
// executor all consult it, and drift between them is a security bug.
package gatewayerr

// Code is one of the closed set of external error codes a tool
// invocation can fail with.
type Code string

const (
	// UnknownSecret means the identifier has no mapping, or its
	// environment variable is unset.
	UnknownSecret Code = "unknown_secret"
	// NoPolicy means a mapping exists but no policy governs it.
	NoPolicy Code = "no_policy"
	// PolicyExpired means the policy's expiresAt is at or before now.
	PolicyExpired Code = "policy_expired"
	// ForbiddenAction means the action is outside the global vocabulary
	// or outside the policy's allowed set.
	ForbiddenAction Code = "forbidden_action"
	// ForbiddenDomain means the domain is not an exact member of the
	// policy's allowed domain set.
	ForbiddenDomain Code = "forbidden_domain"
	// RateLimited means the sliding-window budget is exhausted.
	RateLimited Code = "rate_limited"
	// InvalidRequest means the input shape, URL, method, injection
	// type, or header name is invalid.
	InvalidRequest Code = "invalid_request"
	// InvalidURL is a finer-grained invalid_request for malformed URLs.
	InvalidURL Code = "invalid_url"
	// InvalidHeaders is a finer-grained invalid_request for malformed
	// headers.
	InvalidHeaders Code = "invalid_headers"
	// InvalidMethod is a finer-grained invalid_request for unsupported
	// HTTP methods.
	InvalidMethod Code = "invalid_method"
	// InvalidInjectionType is a finer-grained invalid_request for an
	// unrecognized secret injection type.
	InvalidInjectionType Code = "invalid_injection_type"
	// MissingEnv means the resolver found a mapping but its environment
	// variable was empty at call time.
	MissingEnv Code = "missing_env"
	// Timeout means the outbound call exceeded its deadline.
	Timeout Code = "timeout"
	// ExecutionFailed is an unclassified post-validation failure.
	ExecutionFailed Code = "execution_failed"
	// UnknownTool means the dispatcher received an unregistered tool
	// name.
	UnknownTool Code = "unknown_tool"
	// InvalidRateLimit means the limiter was asked to check a key with
	// a non-positive limit or window.
	InvalidRateLimit Code = "invalid_rate_limit"
)

// Error is a structured, non-exceptional denial/failure outcome. It is
// returned as a first-class value, never as a panic or a generic error
// wrapped with secret-bearing context, so that policy, validation, and
// rate-limit outcomes can feed audit decisions and response paths
// uniformly.
type Error struct {
	Code    Code
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// New constructs an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}
