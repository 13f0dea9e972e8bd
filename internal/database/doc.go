// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

// Package database provides the DuckDB data layer for Civicmap.
//
// # Overview
//
// A single DB value owns the connection pool and serves every table:
//   - database.go: connection lifecycle (open, pool sizing, checkpoint on close)
//   - database_schema.go: sequences, tables and indexes
//   - database_utils.go: profiling, context timeouts, record counts
//   - keys.go: modality secrets; DB implements auth.KeyStore
//   - users.go: principals; DB implements auth.UserDirectory
//   - tokens.go: TokenLedger, the api_tokens nonce ledger (auth.NonceLedger)
//   - issues.go, comments.go: the report data served by the API
//   - seed.go: demo provisioning for development
//
// # Replay Protection
//
// api_tokens.token is the PRIMARY KEY. Two concurrent inserts of one token
// cannot both commit, so TokenLedger.Insert is the authoritative replay guard.
// Unique constraint errors map to auth.ErrDuplicateToken. A transaction
// conflict is resolved by re-checking the key and retrying once.
//
// # Usage
//
//	db, err := database.New(&cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	validator, err := auth.NewValidator(auth.ValidatorConfig{
//	    Keys:   db,
//	    Users:  db,
//	    Ledger: database.NewTokenLedger(db),
//	})
//
// # Concurrency
//
// All exported methods are safe for concurrent use. Every method applies a
// 30 second timeout when the caller's context has no deadline.
//
// # Error Handling
//
// Errors are wrapped with fmt.Errorf and %w. Lookups return the auth package
// sentinels (auth.ErrKeyNotFound, auth.ErrUserNotFound) or this package's
// ErrIssueNotFound so callers can branch with errors.Is.
package database
