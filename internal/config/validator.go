package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/secretgate/secretgate/internal/adapter/outbound/cel"
	"github.com/secretgate/secretgate/internal/domain/policy"
	"github.com/secretgate/secretgate/internal/domain/secretmap"
)

// fqdnPattern is the exact FQDN shape spec.md §4.1 requires: no
// wildcards, no leading/trailing dot, ASCII labels only.
var fqdnPattern = regexp.MustCompile(`^([a-z0-9]+(-[a-z0-9]+)*\.)+[a-z]{2,}$`)

const wildcardMessage = "Wildcards not allowed. Use exact FQDNs only"

// Validate normalizes and validates a RawDocument, returning a
// deeply-immutable Configuration or a single invalid_request-shaped
// error enumerating every violation found.
func Validate(raw RawDocument) (*Configuration, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(raw); err != nil {
		return nil, formatValidationErrors(err)
	}

	var violations []string

	if raw.Version != SupportedVersion {
		violations = append(violations, fmt.Sprintf("version: unsupported version %q, expected %q", raw.Version, SupportedVersion))
	}

	mappings, mappingViolations := normalizeMappings(raw.Mappings)
	violations = append(violations, mappingViolations...)

	conditionEvaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("build condition validator: %w", err)
	}

	policies, policyViolations := normalizePolicies(raw.Policies, conditionEvaluator)
	violations = append(violations, policyViolations...)

	settings := raw.Settings
	if settings.AuditDir == "" {
		settings.AuditDir = defaultSettings().AuditDir
	}
	if settings.MaxFileSizeMb == 0 {
		settings.MaxFileSizeMb = defaultSettings().MaxFileSizeMb
	}
	if settings.MaxFileAgeDays == 0 {
		settings.MaxFileAgeDays = defaultSettings().MaxFileAgeDays
	}

	if len(violations) > 0 {
		return nil, errors.New(strings.Join(violations, "; "))
	}

	return &Configuration{
		Version:  raw.Version,
		Mappings: mappings,
		Policies: policies,
		Settings: Settings{
			AuditDir:         settings.AuditDir,
			MaxFileSizeMB:    settings.MaxFileSizeMb,
			MaxFileAgeDays:   settings.MaxFileAgeDays,
			DefaultRateLimit: rawRateLimitToDomain(settings.DefaultRateLimit),
		},
	}, nil
}

// normalizeMappings trims identifiers, checks shape, and rejects
// duplicate secret identifiers across the mappings list.
func normalizeMappings(raw []RawMapping) ([]secretmap.Mapping, []string) {
	var violations []string
	seen := make(map[string]bool, len(raw))
	mappings := make([]secretmap.Mapping, 0, len(raw))

	for i, m := range raw {
		id := strings.TrimSpace(m.SecretID)
		if !secretmap.ValidSecretID(id) {
			violations = append(violations, fmt.Sprintf("mappings[%d]: secretId %q is invalid", i, m.SecretID))
			continue
		}
		if seen[id] {
			violations = append(violations, fmt.Sprintf("mappings[%d]: duplicate secretId %q", i, id))
			continue
		}
		if !secretmap.ValidEnvVar(m.EnvVar) {
			violations = append(violations, fmt.Sprintf("mappings[%d]: envVar %q is invalid", i, m.EnvVar))
			continue
		}
		seen[id] = true
		mappings = append(mappings, secretmap.Mapping{
			SecretID:    id,
			EnvVar:      m.EnvVar,
			Description: m.Description,
		})
	}
	return mappings, violations
}

// normalizePolicies trims, lowercases, and deduplicates domains,
// rejects wildcard characters with the fixed spec.md message, rejects
// duplicate secret identifiers across the policies list, and rejects a
// syntactically invalid condition before it can ever reach a tool call.
func normalizePolicies(raw []RawPolicy, conditionEvaluator *cel.Evaluator) ([]policy.Policy, []string) {
	var violations []string
	seen := make(map[string]bool, len(raw))
	policies := make([]policy.Policy, 0, len(raw))

	for i, p := range raw {
		id := strings.TrimSpace(p.SecretID)
		if id == "" {
			violations = append(violations, fmt.Sprintf("policies[%d]: secretId is required", i))
			continue
		}
		if seen[id] {
			violations = append(violations, fmt.Sprintf("policies[%d]: duplicate secretId %q", i, id))
			continue
		}

		actions := make(map[policy.Action]bool, len(p.AllowedActions))
		for _, a := range p.AllowedActions {
			action := policy.Action(a)
			if !policy.ValidActions[action] {
				violations = append(violations, fmt.Sprintf("policies[%d]: allowedActions contains unknown action %q", i, a))
				continue
			}
			actions[action] = true
		}

		domains, domainViolations := normalizeDomains(i, p.AllowedDomains)
		violations = append(violations, domainViolations...)

		var rateLimit *policy.RateLimit
		if p.RateLimit != nil {
			if p.RateLimit.Requests < 1 || p.RateLimit.WindowSeconds < 1 {
				violations = append(violations, fmt.Sprintf("policies[%d]: rateLimit requests and windowSeconds must be positive", i))
			} else {
				rateLimit = &policy.RateLimit{Requests: p.RateLimit.Requests, WindowSeconds: p.RateLimit.WindowSeconds}
			}
		}

		expiresAt, err := expiresAtPtr(p.ExpiresAt)
		if err != nil {
			violations = append(violations, fmt.Sprintf("policies[%d]: expiresAt %q does not parse as an RFC 3339 instant", i, p.ExpiresAt))
		}

		condition := strings.TrimSpace(p.Condition)
		if condition != "" {
			if err := conditionEvaluator.ValidateExpression(condition); err != nil {
				violations = append(violations, fmt.Sprintf("policies[%d]: condition is invalid: %v", i, err))
			}
		}

		seen[id] = true
		policies = append(policies, policy.Policy{
			SecretID:       id,
			AllowedActions: actions,
			AllowedDomains: domains,
			RateLimit:      rateLimit,
			ExpiresAt:      expiresAt,
			Condition:      condition,
		})
	}
	return policies, violations
}

func normalizeDomains(policyIndex int, raw []string) (map[string]bool, []string) {
	var violations []string
	domains := make(map[string]bool, len(raw))

	for _, d := range raw {
		trimmed := strings.TrimSpace(d)
		lower := strings.ToLower(trimmed)

		if strings.ContainsAny(lower, "*?[] \t\n") || strings.HasSuffix(lower, ".") {
			violations = append(violations, fmt.Sprintf("policies[%d]: domain %q: %s", policyIndex, d, wildcardMessage))
			continue
		}
		if len(lower) < 3 || len(lower) > 253 || !fqdnPattern.MatchString(lower) {
			violations = append(violations, fmt.Sprintf("policies[%d]: domain %q is not a valid FQDN", policyIndex, d))
			continue
		}
		domains[lower] = true
	}
	return domains, violations
}

// formatValidationErrors converts validator.ValidationErrors into one
// semicolon-joined message enumerating every struct-tag violation.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		messages := make([]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must have at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
