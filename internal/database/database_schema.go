// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

/*
database_schema.go - Database Schema Management

Tables:
  - api_keys: modality secrets (one row per client integration)
  - users: principals tokens resolve to (bcrypt password hashes)
  - api_tokens: the nonce ledger; token is the primary key
  - issues: geo-tagged reports
  - comments: replies on issues

Timestamps are TIMESTAMP (UTC, set by the application) so no extension is
needed for defaults.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

// allTables lists the tables in creation order.
var allTables = []string{"api_keys", "users", "api_tokens", "issues", "comments"}

// schemaContext returns a context with timeout for schema operations
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// createTables creates the core database tables
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}

	return nil
}

// getTableCreationQueries returns the table creation SQL statements
func getTableCreationQueries() []string {
	return []string{
		`CREATE SEQUENCE IF NOT EXISTS users_id_seq START 1`,
		`CREATE SEQUENCE IF NOT EXISTS issues_id_seq START 1`,
		`CREATE SEQUENCE IF NOT EXISTS comments_id_seq START 1`,

		`CREATE TABLE IF NOT EXISTS api_keys (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			skey TEXT NOT NULL,
			state INTEGER NOT NULL DEFAULT 1,
			created TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY DEFAULT nextval('users_id_seq'),
			username TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL,
			block BOOLEAN NOT NULL DEFAULT false,
			created TIMESTAMP NOT NULL
		)`,

		// token is the primary key so a second insert of the same token
		// fails atomically; the pre-insert lookup is only a fast path.
		`CREATE TABLE IF NOT EXISTS api_tokens (
			token TEXT PRIMARY KEY,
			key_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			unixtime BIGINT NOT NULL,
			created TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS issues (
			id BIGINT PRIMARY KEY DEFAULT nextval('issues_id_seq'),
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			latitude DOUBLE NOT NULL,
			longitude DOUBLE NOT NULL,
			address TEXT NOT NULL DEFAULT '',
			state INTEGER NOT NULL DEFAULT 1,
			moderation BOOLEAN NOT NULL DEFAULT false,
			created_by BIGINT NOT NULL,
			language TEXT NOT NULL DEFAULT '*',
			created TIMESTAMP NOT NULL,
			updated TIMESTAMP NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS comments (
			id BIGINT PRIMARY KEY DEFAULT nextval('comments_id_seq'),
			issueid BIGINT NOT NULL,
			parentid BIGINT NOT NULL DEFAULT 0,
			created_by BIGINT NOT NULL,
			fullname TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			moderation BOOLEAN NOT NULL DEFAULT false,
			is_admin BOOLEAN NOT NULL DEFAULT false,
			state INTEGER NOT NULL DEFAULT 1,
			created TIMESTAMP NOT NULL,
			updated TIMESTAMP NOT NULL
		)`,
	}
}

// createIndexes creates indexes for the common query patterns
func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range getIndexQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", query, err)
		}
	}
	return nil
}

// getIndexQueries returns the index creation SQL statements
func getIndexQueries() []string {
	return []string{
		`CREATE INDEX IF NOT EXISTS idx_issues_state ON issues(state)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_location ON issues(latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_created_by ON issues(created_by)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_issue ON comments(issueid, state)`,
		`CREATE INDEX IF NOT EXISTS idx_api_tokens_user ON api_tokens(user_id)`,
	}
}
