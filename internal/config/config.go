// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package config loads Gatehouse configuration from a YAML file and
// command-line flags. Flags take precedence over file values, which take
// precedence over defaults.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// Config holds all Gatehouse runtime configuration.
type Config struct {
	Listen   ListenConfig   `koanf:"listen"`
	Database DatabaseConfig `koanf:"database"`
	Log      LogConfig      `koanf:"log"`
	Auth     AuthConfig     `koanf:"auth"`
}

// ListenConfig holds the listen addresses for the API and observability
// servers.
type ListenConfig struct {
	API     string `koanf:"api"`
	Metrics string `koanf:"metrics"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// AuthConfig holds authentication behavior settings.
type AuthConfig struct {
	SessionTTL    time.Duration `koanf:"session_ttl"`
	ResetTTL      time.Duration `koanf:"reset_ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	HashPoolSize  int           `koanf:"hash_pool_size"`
	Argon2        Argon2Config  `koanf:"argon2"`
	SignUpFields  []string      `koanf:"signup_fields"`
	ProfileFields []string      `koanf:"profile_fields"`
	ExemptRoutes  []string      `koanf:"exempt_routes"`
	CookieName    string        `koanf:"cookie_name"`
}

// Argon2Config holds the argon2id hashing parameters.
type Argon2Config struct {
	Time    uint32 `koanf:"time"`
	Memory  uint32 `koanf:"memory"`
	Threads uint8  `koanf:"threads"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	params := auth.DefaultHasherParams()

	return &Config{
		Listen: ListenConfig{
			API:     ":8080",
			Metrics: ":9100",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Auth: AuthConfig{
			SessionTTL:    auth.DefaultSessionTTL,
			ResetTTL:      auth.DefaultResetTokenTTL,
			SweepInterval: auth.DefaultSweepInterval,
			HashPoolSize:  auth.DefaultHashPoolSize,
			Argon2: Argon2Config{
				Time:    params.Time,
				Memory:  params.Memory,
				Threads: params.Threads,
			},
			SignUpFields:  []string{"name"},
			ProfileFields: []string{"name"},
			CookieName:    "gatehouse_session",
		},
	}
}

// Load reads configuration from the given file path (if non-empty) and
// overlays values from the given flag set (if non-nil) on top. Missing
// keys keep their defaults.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.
				Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrapf(err, "loading config file")
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.
				Code("CONFIG_LOAD_FAILED").
				Wrapf(err, "loading flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.
			Code("CONFIG_PARSE_FAILED").
			Wrapf(err, "unmarshaling config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for values that would prevent the
// service from starting.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return oops.
			Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database URL is required")
	}

	if c.Auth.SessionTTL < auth.MinSessionTTL {
		return oops.
			Code("CONFIG_INVALID").
			With("key", "auth.session_ttl").
			With("min", auth.MinSessionTTL.String()).
			Errorf("session TTL too short")
	}

	if c.Auth.ResetTTL <= 0 {
		return oops.
			Code("CONFIG_INVALID").
			With("key", "auth.reset_ttl").
			Errorf("reset TTL must be positive")
	}

	if c.Auth.SweepInterval <= 0 {
		return oops.
			Code("CONFIG_INVALID").
			With("key", "auth.sweep_interval").
			Errorf("sweep interval must be positive")
	}

	if c.Auth.HashPoolSize <= 0 {
		return oops.
			Code("CONFIG_INVALID").
			With("key", "auth.hash_pool_size").
			Errorf("hash pool size must be positive")
	}

	if c.Auth.Argon2.Time == 0 || c.Auth.Argon2.Memory == 0 || c.Auth.Argon2.Threads == 0 {
		return oops.
			Code("CONFIG_INVALID").
			With("key", "auth.argon2").
			Errorf("argon2 parameters must be non-zero")
	}

	if c.Auth.CookieName == "" {
		return oops.
			Code("CONFIG_INVALID").
			With("key", "auth.cookie_name").
			Errorf("cookie name is required")
	}

	return nil
}

// HasherParams returns the argon2id parameters as auth.HasherParams.
func (c *Config) HasherParams() auth.HasherParams {
	return auth.HasherParams{
		Time:    c.Auth.Argon2.Time,
		Memory:  c.Auth.Argon2.Memory,
		Threads: c.Auth.Argon2.Threads,
	}
}
