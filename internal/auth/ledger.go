// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/civicmap/internal/logging"
)

// NonceRecord is one accepted token. Records are unique by Token across all
// modalities and are never updated by this package.
type NonceRecord struct {
	KeyID     ModalityID `json:"key_id"`
	UserID    int64      `json:"user_id"`
	Method    string     `json:"method"`
	Token     string     `json:"token"`
	UnixTime  int64      `json:"unixtime"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

// NonceLedger records consumed tokens.
type NonceLedger interface {
	// Exists reports whether token has been recorded. Under concurrency the
	// answer may be stale; it is a fast path only.
	Exists(ctx context.Context, token string) (bool, error)

	// Insert atomically records rec. It returns ErrDuplicateToken when
	// rec.Token is already present, so of any number of concurrent inserts
	// of one token at most one succeeds.
	Insert(ctx context.Context, rec *NonceRecord) error

	// Close releases resources held by the ledger.
	Close() error
}

// MemoryLedger is an in-process NonceLedger. Records are lost on restart, so
// it suits tests and single-instance development only.
type MemoryLedger struct {
	mu      sync.RWMutex
	records map[string]NonceRecord
	closed  bool
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{records: make(map[string]NonceRecord)}
}

// Exists implements NonceLedger.
func (l *MemoryLedger) Exists(_ context.Context, token string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		LedgerOperationsTotal.WithLabelValues("memory", "exists", "failure").Inc()
		return false, ErrLedgerClosed
	}
	_, ok := l.records[token]
	LedgerOperationsTotal.WithLabelValues("memory", "exists", "success").Inc()
	return ok, nil
}

// Insert implements NonceLedger.
func (l *MemoryLedger) Insert(_ context.Context, rec *NonceRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		LedgerOperationsTotal.WithLabelValues("memory", "insert", "failure").Inc()
		return ErrLedgerClosed
	}
	if existing, ok := l.records[rec.Token]; ok {
		LedgerOperationsTotal.WithLabelValues("memory", "insert", "duplicate").Inc()
		logging.Warn().
			Str("modality", rec.KeyID.String()).
			Int64("first_user_id", existing.UserID).
			Time("first_seen", existing.CreatedAt).
			Msg("Duplicate token insert rejected")
		return ErrDuplicateToken
	}

	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	l.records[rec.Token] = stored
	LedgerOperationsTotal.WithLabelValues("memory", "insert", "success").Inc()
	return nil
}

// Len returns the number of recorded tokens.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Get returns the record for token, if any.
func (l *MemoryLedger) Get(token string) (NonceRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[token]
	return rec, ok
}

// Close implements NonceLedger.
func (l *MemoryLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.records = nil
	return nil
}
