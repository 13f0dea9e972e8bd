// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateLedger(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateEvents(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validateServer validates server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

// validateDatabase validates DuckDB configuration
func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0")
	}
	return nil
}

// validateLedger validates the nonce ledger backend selection
func (c *Config) validateLedger() error {
	switch c.Ledger.Backend {
	case LedgerBackendDuckDB, LedgerBackendMemory:
		return nil
	case LedgerBackendBadger:
		if c.Ledger.BadgerPath == "" {
			return fmt.Errorf("LEDGER_BADGER_PATH is required when LEDGER_BACKEND=badger")
		}
		return nil
	default:
		return fmt.Errorf("LEDGER_BACKEND must be one of: duckdb, badger, memory")
	}
}

// Token validation bounds
const (
	minSecretLengthFloor = 16
	minFreshnessWindow   = time.Second
	maxFreshnessWindow   = 24 * time.Hour
)

// validateSecurity validates security configuration
func (c *Config) validateSecurity() error {
	if err := c.validateTokenSettings(); err != nil {
		return err
	}

	if err := c.validateCORS(); err != nil {
		return err
	}

	if err := c.validateRateLimits(); err != nil {
		return err
	}

	if err := c.validateAuthFailureStatus(); err != nil {
		return err
	}

	return c.validateModalities()
}

// validateTokenSettings validates the freshness window and secret length gate
func (c *Config) validateTokenSettings() error {
	if c.Security.MinSecretLength < minSecretLengthFloor {
		return fmt.Errorf("MIN_SECRET_LENGTH must be at least %d", minSecretLengthFloor)
	}
	if c.Security.FreshnessWindow < minFreshnessWindow || c.Security.FreshnessWindow > maxFreshnessWindow {
		return fmt.Errorf("TOKEN_FRESHNESS_WINDOW must be between %v and %v", minFreshnessWindow, maxFreshnessWindow)
	}
	if c.Security.KeyCacheTTL < 0 {
		return fmt.Errorf("KEY_CACHE_TTL must be >= 0")
	}
	if c.Security.DirectoryBreaker.Threshold == 0 {
		return fmt.Errorf("DIRECTORY_BREAKER_THRESHOLD must be at least 1")
	}
	return nil
}

// validateCORS rejects wildcard CORS in production.
func (c *Config) validateCORS() error {
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed when ENVIRONMENT=production. " +
			"Set specific origins: CORS_ORIGINS=https://yourdomain.com,https://app.yourdomain.com " +
			"or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration should be logged at startup
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1           // Minimum 1 request allowed
	maxRateLimitRequests = 100000      // Maximum 100K requests per window
	minRateLimitWindow   = time.Second // Minimum 1 second window
	maxRateLimitWindow   = time.Hour   // Maximum 1 hour window
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}

	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

// validateAuthFailureStatus restricts the rejection status to the envelope-compatible set
func (c *Config) validateAuthFailureStatus() error {
	switch c.Security.AuthFailureStatus {
	case http.StatusOK, http.StatusUnauthorized, http.StatusForbidden:
		return nil
	default:
		return fmt.Errorf("AUTH_FAILURE_STATUS must be one of: 200, 401, 403")
	}
}

// validateModalities checks statically provisioned keys.
//
// Secrets shorter than MIN_SECRET_LENGTH are accepted here and rejected per
// request, see WeakModalities.
func (c *Config) validateModalities() error {
	seen := make(map[int64]bool, len(c.Security.Modalities))
	for i, m := range c.Security.Modalities {
		if m.ID <= 0 {
			return fmt.Errorf("security.modalities[%d]: id must be positive", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("security.modalities[%d]: duplicate id %d", i, m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// WeakModalities returns the static modalities whose secret is shorter than
// MIN_SECRET_LENGTH, for startup warnings.
func (c *Config) WeakModalities() []ModalityConfig {
	var weak []ModalityConfig
	for _, m := range c.Security.Modalities {
		if len(m.Secret) < c.Security.MinSecretLength {
			weak = append(weak, m)
		}
	}
	return weak
}

// validateEvents validates the auth event stream configuration
func (c *Config) validateEvents() error {
	switch c.Events.Transport {
	case EventsTransportChannel:
	case EventsTransportNATS:
		if c.Events.NATSURL == "" && !c.Events.NATSEmbedded {
			return fmt.Errorf("NATS_URL is required when EVENTS_TRANSPORT=nats")
		}
		if c.Events.NATSEmbedded && c.Events.NATSStoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
		}
	default:
		return fmt.Errorf("EVENTS_TRANSPORT must be one of: channel, nats")
	}
	if c.Events.Topic == "" {
		return fmt.Errorf("EVENTS_TOPIC is required")
	}
	if c.Events.Retain < 0 {
		return fmt.Errorf("EVENTS_RETAIN must be >= 0")
	}
	if c.Events.PersistRetention < 0 {
		return fmt.Errorf("EVENTS_RETENTION must be >= 0")
	}
	return nil
}

// validLogLevels defines the accepted LOG_LEVEL values
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"fatal": true,
	"panic": true,
}

// validateLogging validates logging configuration
func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error, fatal, panic")
	}
	format := strings.ToLower(c.Logging.Format)
	if format != "json" && format != "console" {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}
