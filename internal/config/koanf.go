// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/civicmap/config.yaml",
	"/etc/civicmap/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8080,
			Host:        "0.0.0.0",
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:      "/data/civicmap.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
			SeedDemo:  false,
		},
		Ledger: LedgerConfig{
			Backend:    LedgerBackendDuckDB,
			BadgerPath: "/data/ledger",
		},
		Security: SecurityConfig{
			FreshnessWindow:   600 * time.Second,
			MinSecretLength:   16,
			KeyCacheTTL:       5 * time.Minute,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
			AuthFailureStatus: 200,
			DirectoryBreaker: BreakerConfig{
				Threshold:   5,
				Timeout:     30 * time.Second,
				Interval:    time.Minute,
				MaxRequests: 1,
			},
		},
		Comments: CommentsConfig{
			Enabled:          true,
			DirectPublishing: false,
		},
		Events: EventsConfig{
			Transport:    EventsTransportChannel,
			NATSURL:      "nats://127.0.0.1:4222",
			NATSEmbedded: false,
			NATSStoreDir: "/data/nats",
			Topic:        "auth.events",
			Retain:       200,

			Persist:          true,
			PersistRetention: 30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HTTP_PORT -> server.port, LEDGER_BACKEND -> ledger.backend, ...
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
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

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings; YAML lists are left untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",
	"environment":  "server.environment",

	// Database
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",
	"seed_demo_data":    "database.seed_demo",

	// Ledger
	"ledger_backend":     "ledger.backend",
	"ledger_badger_path": "ledger.badger_path",

	// Security
	"token_freshness_window":         "security.freshness_window",
	"min_secret_length":              "security.min_secret_length",
	"key_cache_ttl":                  "security.key_cache_ttl",
	"rate_limit_requests":            "security.rate_limit_reqs",
	"rate_limit_window":              "security.rate_limit_window",
	"disable_rate_limit":             "security.rate_limit_disabled",
	"cors_origins":                   "security.cors_origins",
	"auth_failure_status":            "security.auth_failure_status",
	"directory_breaker_threshold":    "security.directory_breaker.threshold",
	"directory_breaker_timeout":      "security.directory_breaker.timeout",
	"directory_breaker_interval":     "security.directory_breaker.interval",
	"directory_breaker_max_requests": "security.directory_breaker.max_requests",

	// Comments
	"comments_enabled":           "comments.enabled",
	"comments_direct_publishing": "comments.direct_publishing",

	// Events
	"events_transport": "events.transport",
	"nats_url":         "events.nats_url",
	"nats_embedded":    "events.nats_embedded",
	"nats_store_dir":   "events.nats_store_dir",
	"events_topic":     "events.topic",
	"events_retain":    "events.retain",
	"events_persist":   "events.persist",
	"events_retention": "events.persist_retention",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - LEDGER_BACKEND -> ledger.backend
//   - TOKEN_FRESHNESS_WINDOW -> security.freshness_window
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	// Unmapped keys are skipped so unrelated environment variables never reach the config.
	return ""
}
