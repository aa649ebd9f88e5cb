package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// DefaultConfigFile is the configuration filename used when none is
// given explicitly.
const DefaultConfigFile = "vault.config.json"

// envPrefix scopes environment variable overrides to this build.
const envPrefix = "SECRETGATE"

// newViper builds a viper instance reading path as a JSON document,
// with SECRETGATE_-prefixed environment overrides bound only to the
// settings block. mappings and policies are structural and must come
// from the reviewed file; an environment variable can never add,
// remove, or alter one.
func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("settings.auditDir")
	_ = v.BindEnv("settings.maxFileSizeMb")
	_ = v.BindEnv("settings.maxFileAgeDays")
	_ = v.BindEnv("settings.defaultRateLimit.requests")
	_ = v.BindEnv("settings.defaultRateLimit.windowSeconds")

	return v
}

// Load reads path (DefaultConfigFile if empty) as JSON, applies
// SECRETGATE_-prefixed settings overrides, and validates the result.
// Malformed or invalid documents return a single error enumerating
// every violation; callers treat this as fatal at startup.
func Load(path string) (*Configuration, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var raw RawDocument
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	cfg, err := Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid_request: %w", err)
	}
	return cfg, nil
}
