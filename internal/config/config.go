// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 XO Arena Contributors

// Package config loads and validates service configuration from defaults,
// an optional YAML file, command-line flags, and the environment.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// MinSecretKeyLength is the minimum byte length accepted for the token
// signing secret.
const MinSecretKeyLength = 32

// Default values. Flags and the YAML file both override these.
const (
	DefaultListen        = ":8080"
	DefaultMetricsListen = "127.0.0.1:9100"
	DefaultAccessTTL     = time.Hour
	DefaultRefreshTTL    = 7 * 24 * time.Hour
	DefaultLogFormat     = "json"
)

// Config is the validated service configuration. The json and jsonschema
// tags drive the generated config file schema; every key is optional in the
// file since defaults and the environment can fill any of them.
type Config struct {
	// Listen is the API server address.
	Listen string `koanf:"listen" json:"listen,omitempty"`

	// MetricsListen is the observability server address. Empty disables it.
	MetricsListen string `koanf:"metrics_listen" json:"metrics_listen,omitempty"`

	// DatabaseURL is the PostgreSQL connection string. Falls back to the
	// DATABASE_URL environment variable when unset.
	DatabaseURL string `koanf:"database_url" json:"database_url,omitempty"`

	// SecretKey signs tokens. The XOARENA_SECRET_KEY environment variable
	// takes precedence over file and flag values.
	SecretKey string `koanf:"secret_key" json:"secret_key,omitempty"`

	AccessTTL  time.Duration `koanf:"access_ttl" json:"access_ttl,omitempty" jsonschema:"oneof_type=string;integer"`
	RefreshTTL time.Duration `koanf:"refresh_ttl" json:"refresh_ttl,omitempty" jsonschema:"oneof_type=string;integer"`

	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log_format" json:"log_format,omitempty" jsonschema:"enum=json,enum=text"`

	Redis RedisConfig `koanf:"redis" json:"redis,omitempty"`
}

// RedisConfig selects the challenge store. When enabled, captcha challenges
// live in Redis with native TTL expiry instead of PostgreSQL.
type RedisConfig struct {
	Enabled bool   `koanf:"enabled" json:"enabled,omitempty"`
	Addr    string `koanf:"addr" json:"addr,omitempty"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"listen":         DefaultListen,
		"metrics_listen": DefaultMetricsListen,
		"database_url":   "",
		"secret_key":     "",
		"access_ttl":     DefaultAccessTTL,
		"refresh_ttl":    DefaultRefreshTTL,
		"log_format":     DefaultLogFormat,
		"redis.enabled":  false,
		"redis.addr":     "",
	}
}

// flagKeyOverrides maps flag names that flatten nested config keys.
var flagKeyOverrides = map[string]string{
	"redis-enabled": "redis.enabled",
	"redis-addr":    "redis.addr",
}

// flagProvider adapts a pflag set to config keys: explicit overrides first,
// then dashes become underscores. Unset flags defer to already-loaded values.
func flagProvider(flags *pflag.FlagSet, k *koanf.Koanf) *posflag.Posflag {
	return posflag.ProviderWithValue(flags, ".", k,
		func(key, value string) (string, interface{}) {
			if mapped, ok := flagKeyOverrides[key]; ok {
				return mapped, value
			}
			return strings.ReplaceAll(key, "-", "_"), value
		})
}

// Load builds a Config by layering defaults, the YAML file at path (skipped
// when path is empty), and explicitly set flags, then applying environment
// overrides and validating the result. The file is checked against the
// generated schema before merging, so unknown keys and mistyped values fail
// with a precise message instead of being silently dropped.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "load defaults").
			Wrap(err)
	}

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator's --config flag
		if err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "read config file").
				With("path", path).
				Wrap(err)
		}
		if err := ValidateFile(data); err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load config file").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(flagProvider(flags, k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	if v := os.Getenv("XOARENA_SECRET_KEY"); v != "" {
		cfg.SecretKey = v
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is complete and coherent.
func (cfg *Config) Validate() error {
	if cfg.Listen == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "listen").
			Errorf("listen address is required")
	}
	if cfg.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "database_url").
			Errorf("database URL is required (set database_url or DATABASE_URL)")
	}
	if cfg.SecretKey == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "secret_key").
			Errorf("secret key is required (set secret_key or XOARENA_SECRET_KEY)")
	}
	if len(cfg.SecretKey) < MinSecretKeyLength {
		return oops.Code("CONFIG_INVALID").
			With("field", "secret_key").
			With("min", MinSecretKeyLength).
			Errorf("secret key must be at least %d bytes", MinSecretKeyLength)
	}
	if cfg.AccessTTL <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("field", "access_ttl").
			Errorf("access TTL must be positive")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return oops.Code("CONFIG_INVALID").
			With("field", "refresh_ttl").
			Errorf("refresh TTL must exceed access TTL")
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			With("field", "log_format").
			Errorf("log format must be 'json' or 'text', got %q", cfg.LogFormat)
	}
	if cfg.Redis.Enabled && cfg.Redis.Addr == "" {
		return oops.Code("CONFIG_INVALID").
			With("field", "redis.addr").
			Errorf("redis address is required when redis is enabled")
	}
	return nil
}
