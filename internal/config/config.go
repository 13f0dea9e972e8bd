// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from defaults, an optional
// YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal("Failed to load config:", err)
//	}
//	db, err := database.New(&cfg.Database)
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Ledger   LedgerConfig   `koanf:"ledger"`
	Security SecurityConfig `koanf:"security"`
	Comments CommentsConfig `koanf:"comments"`
	Events   EventsConfig   `koanf:"events"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // "development", "staging", "production"
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds DuckDB settings
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`   // 0 = use NumCPU
	SeedDemo  bool   `koanf:"seed_demo"` // Insert demo modality, users and issues on startup
}

// Ledger backends
const (
	LedgerBackendDuckDB = "duckdb"
	LedgerBackendBadger = "badger"
	LedgerBackendMemory = "memory"
)

// LedgerConfig selects where consumed tokens are recorded.
type LedgerConfig struct {
	Backend    string `koanf:"backend"`
	BadgerPath string `koanf:"badger_path"`
}

// SecurityConfig holds token validation and HTTP protection settings
type SecurityConfig struct {
	FreshnessWindow   time.Duration `koanf:"freshness_window"`
	MinSecretLength   int           `koanf:"min_secret_length"`
	KeyCacheTTL       time.Duration `koanf:"key_cache_ttl"` // 0 disables the key cache
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`

	// AuthFailureStatus is the HTTP status written for rejected tokens on
	// non-comment endpoints. Comment posting always uses 403.
	AuthFailureStatus int `koanf:"auth_failure_status"`

	DirectoryBreaker BreakerConfig `koanf:"directory_breaker"`

	// Modalities are statically provisioned client keys. When empty the
	// api_keys table is the only key source.
	Modalities []ModalityConfig `koanf:"modalities"`
}

// ModalityConfig is one statically provisioned client key.
type ModalityConfig struct {
	ID     int64  `koanf:"id"`
	Name   string `koanf:"name"`
	Secret string `koanf:"secret"`
}

// BreakerConfig configures a gobreaker circuit breaker.
type BreakerConfig struct {
	Threshold   uint32        `koanf:"threshold"`    // consecutive failures before opening
	Timeout     time.Duration `koanf:"timeout"`      // open -> half-open
	Interval    time.Duration `koanf:"interval"`     // closed-state counter reset
	MaxRequests uint32        `koanf:"max_requests"` // allowed in half-open
}

// CommentsConfig controls the comment endpoints.
type CommentsConfig struct {
	Enabled          bool `koanf:"enabled"`
	DirectPublishing bool `koanf:"direct_publishing"`
}

// Event transports
const (
	EventsTransportChannel = "channel"
	EventsTransportNATS    = "nats"
)

// EventsConfig configures the authentication event stream.
type EventsConfig struct {
	Transport    string `koanf:"transport"`
	NATSURL      string `koanf:"nats_url"`
	NATSEmbedded bool   `koanf:"nats_embedded"`
	NATSStoreDir string `koanf:"nats_store_dir"`
	Topic        string `koanf:"topic"`
	Retain       int    `koanf:"retain"` // events kept in memory by the recorder

	// Persist stores every recorded event in the auth_events table.
	Persist bool `koanf:"persist"`

	// PersistRetention prunes stored events older than this; 0 keeps them.
	PersistRetention time.Duration `koanf:"persist_retention"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration with the following precedence (highest to lowest):
//  1. Environment variables
//  2. Config file (config.yaml if exists, or path specified in CONFIG_PATH env var)
//  3. Built-in defaults
//
// See LoadWithKoanf() for the underlying implementation.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
