// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

// Package config loads service configuration in three layers with clear
// precedence: environment variables override the optional YAML config file,
// which overrides built-in defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces this service's environment variables:
// WATCHSYNC_SERVER_ADDR, WATCHSYNC_AUTH_JWT_SECRET, and so on.
const envPrefix = "WATCHSYNC_"

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "WATCHSYNC_CONFIG_PATH"

// DefaultConfigPaths lists the paths searched for a config file, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/watchsync/config.yaml",
	"/etc/watchsync/config.yml",
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Auth      AuthConfig      `koanf:"auth"`
	Storage   StorageConfig   `koanf:"storage"`
	Retry     RetryConfig     `koanf:"retry"`
	Cache     CacheConfig     `koanf:"cache"`
	Recommend RecommendConfig `koanf:"recommend"`
	Log       LogConfig       `koanf:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	RateLimit       int           `koanf:"rate_limit" validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=16"`
}

// StorageConfig configures the entry store. InMemory is for tests and
// ephemeral deployments; otherwise Path is required.
type StorageConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// RetryConfig configures the client-facing default retry policy.
type RetryConfig struct {
	MaxRetries int           `koanf:"max_retries" validate:"min=0,max=10"`
	BaseDelay  time.Duration `koanf:"base_delay" validate:"min=0"`
	MaxDelay   time.Duration `koanf:"max_delay" validate:"min=0"`
}

// CacheConfig configures result caching.
type CacheConfig struct {
	RecommendationTTL time.Duration `koanf:"recommendation_ttl" validate:"min=0"`
}

// RecommendConfig configures the upstream recommender. An empty BaseURL
// disables the recommendations route.
type RecommendConfig struct {
	BaseURL           string  `koanf:"base_url" validate:"omitempty,url"`
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"min=0"`
	Burst             int     `koanf:"burst" validate:"min=0"`
}

// LogConfig configures structured logging output.
type LogConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			RateLimit:       300,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			Path: "/data/watchsync",
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  1 * time.Second,
			MaxDelay:   5 * time.Second,
		},
		Cache: CacheConfig{
			RecommendationTTL: 30 * time.Minute,
		},
		Recommend: RecommendConfig{
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional config file, and
// WATCHSYNC_* environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Comma-separated env values for slice fields.
	if raw := k.Get("server.allowed_origins"); raw != nil {
		if s, ok := raw.(string); ok {
			if err := k.Set("server.allowed_origins", splitAndTrim(s)); err != nil {
				return nil, fmt.Errorf("set allowed origins: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks field constraints and cross-field consistency.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return err
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required unless storage.in_memory is set")
	}
	if c.Retry.MaxDelay > 0 && c.Retry.BaseDelay > c.Retry.MaxDelay {
		return fmt.Errorf("retry.base_delay must not exceed retry.max_delay")
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps WATCHSYNC_SECTION_SOME_KEY to section.some_key: only
// the first underscore becomes a separator, the rest stay part of the key.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
