// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent represents a security-relevant event for audit logging.
type SecurityEvent struct {
	// Event is the type of event (e.g., "token_accepted", "token_rejected").
	Event string
	// UserID is the resolved user identifier (if known).
	UserID string
	// Username is the username carried by the token (if known).
	Username string
	// Modality is the client application identifier (m_id).
	Modality string
	// Kind is the rejection kind for failures.
	Kind string
	// Stage is the validation stage that produced the outcome.
	Stage string
	// IPAddress is the client's IP address.
	IPAddress string
	// UserAgent is the client's user agent (truncated).
	UserAgent string
	// Success indicates if the operation was successful.
	Success bool
	// Error is the error message if the operation failed.
	Error string
	// Details contains additional sanitized details.
	Details map[string]string
}

// SecurityLogger provides secure logging for authentication events.
// It sanitizes sensitive data before logging.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a new security logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{
		logger: With().Str("component", "auth").Logger(),
	}
}

// NewSecurityLoggerWithLogger creates a security logger with a custom zerolog logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("component", "auth").Logger(),
	}
}

// LogEvent logs a security event with sanitization applied.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	var e *zerolog.Event
	if event.Success {
		e = l.logger.Info().Str("status", "success")
	} else {
		e = l.logger.Warn().Str("status", "failed")
	}
	e = e.Str("event", event.Event)

	if event.UserID != "" {
		e = e.Str("user_id", event.UserID)
	}
	if event.Username != "" {
		e = e.Str("username", SanitizeUsername(event.Username))
	}
	if event.Modality != "" {
		e = e.Str("modality", event.Modality)
	}
	if event.Kind != "" {
		e = e.Str("kind", event.Kind)
	}
	if event.Stage != "" {
		e = e.Str("stage", event.Stage)
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", truncateString(event.UserAgent, 100))
	}
	if event.Error != "" && !event.Success {
		e = e.Str("error", SanitizeError(event.Error))
	}

	for k, v := range event.Details {
		e = e.Str(k, SanitizeValue(k, v))
	}

	e.Msg("")
}

// LogTokenAccepted logs a request whose token passed every validation stage.
func (l *SecurityLogger) LogTokenAccepted(userID, username, modality, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     "token_accepted",
		UserID:    userID,
		Username:  username,
		Modality:  modality,
		Stage:     "recorded",
		IPAddress: ip,
		Success:   true,
	})
}

// LogTokenRejected logs a request whose token failed validation.
func (l *SecurityLogger) LogTokenRejected(modality, kind, stage, ip, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:     "token_rejected",
		Modality:  modality,
		Kind:      kind,
		Stage:     stage,
		IPAddress: ip,
		Success:   false,
		Error:     reason,
	})
}

// LogWeakSecret logs a modality whose configured secret is too short to use.
func (l *SecurityLogger) LogWeakSecret(modality string, length, minimum int) {
	l.logger.Warn().
		Str("event", "weak_secret").
		Str("modality", modality).
		Int("length", length).
		Int("minimum", minimum).
		Msg("Modality secret below minimum length")
}

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "q8Jd0aL1...Qm2Zp" -> "q8Jd...m2Zp"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeUsername masks a username, keeping first 2 characters.
// Example: "johndoe" -> "jo***"
func SanitizeUsername(username string) string {
	if username == "" {
		return ""
	}
	if len(username) <= 2 {
		return "***"
	}
	return username[:2] + "***"
}

// SanitizeError removes potentially sensitive information from error messages.
func SanitizeError(err string) string {
	sensitivePatterns := []string{
		"password",
		"secret",
		"bearer",
		"authorization",
		"cookie",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "authentication error"
		}
	}

	return truncateString(err, 200)
}

// SanitizeValue sanitizes a value based on its key name.
func SanitizeValue(key, value string) string {
	switch strings.ToLower(key) {
	case "token", "password", "secret", "api_key", "apikey", "authorization", "p", "r":
		return SanitizeToken(value)
	}
	return value
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
