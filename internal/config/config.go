// Package config loads and validates the vault configuration document:
// the secret mappings, policies, and settings the gateway runs with for
// its entire process lifetime.
package config

import (
	"time"

	"github.com/secretgate/secretgate/internal/domain/policy"
	"github.com/secretgate/secretgate/internal/domain/ratelimit"
	"github.com/secretgate/secretgate/internal/domain/secretmap"
)

// SupportedVersion is the only configuration document version this
// build accepts.
const SupportedVersion = "1.0.0"

// RawDocument is the untrusted shape of the configuration file as read
// from JSON, before normalization and validation. Field names mirror
// the wire schema exactly.
type RawDocument struct {
	Version  string          `json:"version" mapstructure:"version" validate:"required"`
	Mappings []RawMapping    `json:"mappings" mapstructure:"mappings" validate:"omitempty,dive"`
	Policies []RawPolicy     `json:"policies" mapstructure:"policies" validate:"omitempty,dive"`
	Settings RawSettings     `json:"settings" mapstructure:"settings"`
}

// RawMapping is one untrusted secretId/envVar pairing.
type RawMapping struct {
	SecretID    string `json:"secretId" mapstructure:"secretId" validate:"required"`
	EnvVar      string `json:"envVar" mapstructure:"envVar" validate:"required"`
	Description string `json:"description" mapstructure:"description"`
}

// RawPolicy is one untrusted per-secret policy.
type RawPolicy struct {
	SecretID       string        `json:"secretId" mapstructure:"secretId" validate:"required"`
	AllowedActions []string      `json:"allowedActions" mapstructure:"allowedActions" validate:"required,min=1,dive,oneof=http_get http_post"`
	AllowedDomains []string      `json:"allowedDomains" mapstructure:"allowedDomains" validate:"required,min=1"`
	RateLimit      *RawRateLimit `json:"rateLimit,omitempty" mapstructure:"rateLimit"`
	ExpiresAt      string        `json:"expiresAt,omitempty" mapstructure:"expiresAt"`
	Condition      string        `json:"condition,omitempty" mapstructure:"condition"`
}

// RawRateLimit is an untrusted requests/windowSeconds budget, shared by
// a policy's own limit and the settings block's default.
type RawRateLimit struct {
	Requests      int `json:"requests" mapstructure:"requests" validate:"required,min=1"`
	WindowSeconds int `json:"windowSeconds" mapstructure:"windowSeconds" validate:"required,min=1"`
}

// RawSettings is the untrusted settings block: audit directory,
// rotation thresholds, and an optional default rate limit applied when
// a policy declares none. The only block environment overrides apply
// to (see loader.go).
type RawSettings struct {
	AuditDir         string        `json:"auditDir" mapstructure:"auditDir"`
	MaxFileSizeMb    int           `json:"maxFileSizeMb" mapstructure:"maxFileSizeMb" validate:"omitempty,min=1"`
	MaxFileAgeDays   int           `json:"maxFileAgeDays" mapstructure:"maxFileAgeDays" validate:"omitempty,min=1"`
	DefaultRateLimit *RawRateLimit `json:"defaultRateLimit,omitempty" mapstructure:"defaultRateLimit"`
}

// Settings holds the normalized, validated settings block.
type Settings struct {
	AuditDir         string
	MaxFileSizeMB    int
	MaxFileAgeDays   int
	DefaultRateLimit *ratelimit.Config
}

// Configuration is the deeply-immutable root document: the validated,
// normalized result of loading and checking a RawDocument. Nothing may
// mutate it after Load returns.
type Configuration struct {
	Version  string
	Mappings []secretmap.Mapping
	Policies []policy.Policy
	Settings Settings
}

// defaultSettings fills in settings defaults matching the audit file
// store's own defaults, so a bare-minimum config still produces a
// working rotation schedule.
func defaultSettings() RawSettings {
	return RawSettings{
		AuditDir:       "./audit",
		MaxFileSizeMb:  100,
		MaxFileAgeDays: 1,
	}
}

func rawRateLimitToDomain(r *RawRateLimit) *ratelimit.Config {
	if r == nil {
		return nil
	}
	return &ratelimit.Config{Limit: r.Requests, WindowSeconds: r.WindowSeconds}
}

func expiresAtPtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
