// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

// Package logging provides centralized zerolog-based structured logging for Civicmap.
//
// The package exposes a process-wide logger that every other package writes
// through, so the API, the token validator, the ledger backends and the
// supervisor tree all emit the same JSON shape.
//
// # Quick Start
//
//	import "github.com/tomtom215/civicmap/internal/logging"
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Str("modality", "3").Msg("Key resolved")
//	logging.Error().Err(err).Msg("Ledger insert failed")
//
//	// Request scoped (request_id, correlation_id)
//	logging.Ctx(ctx).Warn().Str("stage", "fresh").Msg("Token rejected")
//
// # Configuration
//
// Environment Variables:
//
//	LOG_LEVEL   - Minimum log level: trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - Output format: json, console (default: json)
//	LOG_CALLER  - Include caller file:line: true, false (default: false)
//
// # Security Logging
//
// SecurityLogger records authentication outcomes. Usernames, tokens and
// error strings are sanitized before they reach the output; decrypted
// token payloads and modality secrets must never be passed to it.
//
// # slog Bridge
//
// Suture (via sutureslog) and Watermill both accept *slog.Logger. Use
// NewSlogLogger to obtain one that writes through zerolog.
package logging
