// Package sanitize redacts secret-shaped content from anything crossing
// the trust boundary outward: response bodies, response headers, error
// messages, and audit reason strings derived from untrusted input.
package sanitize

import (
	"regexp"
	"strings"
)

// RedactionToken replaces every matched secret shape.
const RedactionToken = "[REDACTED]"

// MaxDepth bounds recursive structured-value walks.
const MaxDepth = 10

// sensitiveKeywords lists substrings that mark an object key as
// sensitive. Comparison is case-insensitive. secretId/secrets are
// opaque handles, never values, and are deliberately excluded.
var sensitiveKeywords = []string{
	"password", "secret", "token", "api_key", "apikey",
	"credential", "auth", "private_key", "privatekey",
}

// exemptKeys are never treated as sensitive even though their names
// might otherwise match sensitiveKeywords substrings.
var exemptKeys = map[string]bool{
	"secretid": true,
	"secrets":  true,
}

// Ordered regex patterns, applied in the sequence spec.md §4.6 fixes.
var (
	urlCredentialsPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s/@]+:[^\s/@]+@`)
	jwtPattern            = regexp.MustCompile(`eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`)
	bearerPattern         = regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9._~+/=-]+`)
	envVarLikePattern     = regexp.MustCompile(`\b[A-Za-z][A-Za-z0-9]*_(?:KEY|SECRET|TOKEN|PASSWORD|API|CREDENTIAL)\b\s*[:=]\s*\S+`)
	providerKeyPattern    = regexp.MustCompile(`\b(?:sk_live_|sk_test_|ghp_|gho_)[A-Za-z0-9]+\b|\b[0-9a-fA-F]{32,}\b|\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)
	longAlnumRunPattern   = regexp.MustCompile(`\b[A-Za-z0-9]{32,}\b`)

	// sensitiveKeyValuePattern matches "key=value" or "key: value" where
	// key is one of the sensitive-name vocabulary words.
	sensitiveKeyValuePattern = regexp.MustCompile(`(?i)\b(` + strings.Join(sensitiveKeywords, "|") + `)\s*[:=]\s*\S+`)
)

func hasLetterAndDigit(s string) bool {
	var hasLetter, hasDigit bool
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			hasLetter = true
		}
	}
	return hasLetter && hasDigit
}

// String applies the ordered pattern sequence to a single string value.
// Idempotent: running it twice yields the same result as running it
// once.
func String(s string) string {
	s = urlCredentialsPattern.ReplaceAllString(s, RedactionToken)
	s = jwtPattern.ReplaceAllString(s, RedactionToken)
	s = bearerPattern.ReplaceAllString(s, "Bearer "+RedactionToken)
	s = envVarLikePattern.ReplaceAllStringFunc(s, func(m string) string {
		idx := strings.IndexAny(m, ":=")
		if idx < 0 {
			return RedactionToken
		}
		return m[:idx+1] + RedactionToken
	})
	s = sensitiveKeyValuePattern.ReplaceAllStringFunc(s, func(m string) string {
		idx := strings.IndexAny(m, ":=")
		if idx < 0 {
			return RedactionToken
		}
		return m[:idx+1] + RedactionToken
	})
	s = providerKeyPattern.ReplaceAllString(s, RedactionToken)
	s = longAlnumRunPattern.ReplaceAllStringFunc(s, func(m string) string {
		if hasLetterAndDigit(m) {
			return RedactionToken
		}
		return m
	})
	return s
}

// isSensitiveKey reports whether key names a sensitive field, honoring
// the secretId/secrets exemption.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if exemptKeys[lower] {
		return false
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Value recursively redacts a decoded JSON-like value (the output of
// json.Unmarshal into interface{}): maps, slices, and strings are
// walked; sensitive map keys have their values replaced outright
// regardless of type. depth exhaustion substitutes the redaction
// token rather than recursing further. The returned value shares no
// mutable state with v.
func Value(v interface{}) interface{} {
	return walk(v, 0)
}

func walk(v interface{}, depth int) interface{} {
	if depth >= MaxDepth {
		return RedactionToken
	}

	switch val := v.(type) {
	case string:
		return String(val)

	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, child := range val {
			if isSensitiveKey(k) {
				out[k] = RedactionToken
				continue
			}
			out[k] = walk(child, depth+1)
		}
		return out

	case []interface{}:
		out := make([]interface{}, len(val))
		for i, child := range val {
			out[i] = walk(child, depth+1)
		}
		return out

	default:
		return v
	}
}
