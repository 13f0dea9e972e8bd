// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/civicmap/internal/auth"
	"github.com/tomtom215/civicmap/internal/logging"
)

const ledgerBackend = "duckdb"

// TokenLedger is an auth.NonceLedger over the api_tokens table. The token
// column is the primary key, which makes Insert atomic across connections.
type TokenLedger struct {
	db *DB
}

// NewTokenLedger returns a ledger sharing db's connection pool. Closing the
// ledger does not close db.
func NewTokenLedger(db *DB) *TokenLedger {
	return &TokenLedger{db: db}
}

// Exists implements auth.NonceLedger.
func (l *TokenLedger) Exists(ctx context.Context, token string) (bool, error) {
	ctx, cancel := l.db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var one int
	err := l.db.conn.QueryRowContext(ctx, `SELECT 1 FROM api_tokens WHERE token = ?`, token).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		observe("select", "api_tokens", start, nil)
		auth.LedgerOperationsTotal.WithLabelValues(ledgerBackend, "exists", "success").Inc()
		return false, nil
	case err != nil:
		observe("select", "api_tokens", start, err)
		auth.LedgerOperationsTotal.WithLabelValues(ledgerBackend, "exists", "failure").Inc()
		return false, fmt.Errorf("failed to look up token: %w", err)
	}
	observe("select", "api_tokens", start, nil)
	auth.LedgerOperationsTotal.WithLabelValues(ledgerBackend, "exists", "success").Inc()
	return true, nil
}

// Insert implements auth.NonceLedger. A failed insert is reported as a
// duplicate when the token is now present. A transaction conflict with no
// row present is retried once.
func (l *TokenLedger) Insert(ctx context.Context, rec *auth.NonceRecord) error {
	ctx, cancel := l.db.ensureContext(ctx)
	defer cancel()

	err := l.insertOnce(ctx, rec)
	if err != nil && !errors.Is(err, auth.ErrDuplicateToken) {
		// A failed insert wrote nothing, so a row present now belongs to
		// another writer.
		exists, existsErr := l.Exists(ctx, rec.Token)
		switch {
		case existsErr != nil:
			// keep the insert error
		case exists:
			err = auth.ErrDuplicateToken
		case isTransactionConflict(err):
			err = l.insertOnce(ctx, rec)
		}
	}

	switch {
	case err == nil:
		auth.LedgerOperationsTotal.WithLabelValues(ledgerBackend, "insert", "success").Inc()
		return nil
	case errors.Is(err, auth.ErrDuplicateToken):
		auth.LedgerOperationsTotal.WithLabelValues(ledgerBackend, "insert", "duplicate").Inc()
		logging.Ctx(ctx).Warn().
			Str("modality", rec.KeyID.String()).
			Int64("user_id", rec.UserID).
			Msg("Duplicate token insert rejected")
		return auth.ErrDuplicateToken
	default:
		auth.LedgerOperationsTotal.WithLabelValues(ledgerBackend, "insert", "failure").Inc()
		return err
	}
}

func (l *TokenLedger) insertOnce(ctx context.Context, rec *auth.NonceRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	start := time.Now()
	_, err := l.db.conn.ExecContext(ctx,
		`INSERT INTO api_tokens (token, key_id, user_id, method, unixtime, created) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Token, int64(rec.KeyID), rec.UserID, rec.Method, rec.UnixTime, created)
	if err != nil && isUniqueConstraintError(err) {
		observe("insert", "api_tokens", start, nil)
		return auth.ErrDuplicateToken
	}
	observe("insert", "api_tokens", start, err)
	if err != nil {
		return fmt.Errorf("failed to record token: %w", err)
	}
	return nil
}

// Get returns the stored record for token.
func (l *TokenLedger) Get(ctx context.Context, token string) (*auth.NonceRecord, error) {
	ctx, cancel := l.db.ensureContext(ctx)
	defer cancel()

	rec := &auth.NonceRecord{Token: token}
	var keyID int64
	err := l.db.conn.QueryRowContext(ctx,
		`SELECT key_id, user_id, method, unixtime, created FROM api_tokens WHERE token = ?`, token).
		Scan(&keyID, &rec.UserID, &rec.Method, &rec.UnixTime, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("token not recorded: %w", sql.ErrNoRows)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	rec.KeyID = auth.ModalityID(keyID)
	return rec, nil
}

// Count returns the number of recorded tokens.
func (l *TokenLedger) Count(ctx context.Context) (int64, error) {
	ctx, cancel := l.db.ensureContext(ctx)
	defer cancel()

	var n int64
	if err := l.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_tokens`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tokens: %w", err)
	}
	return n, nil
}

// Close implements auth.NonceLedger. The connection pool belongs to DB.
func (l *TokenLedger) Close() error {
	return nil
}
