// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/civicmap/internal/logging"
)

// DefaultBadgerLedgerPrefix is the key prefix for nonce records.
const DefaultBadgerLedgerPrefix = "nonce:"

// BadgerLedger is a BadgerDB-backed NonceLedger. Records survive restarts
// and Insert relies on Badger's serializable transactions for atomicity.
type BadgerLedger struct {
	db     *badger.DB
	ownsDB bool
	prefix []byte
	closed bool
	mu     sync.RWMutex
}

// NewBadgerLedger creates a ledger on an existing database. The caller keeps
// ownership of db.
//
// Parameters:
//   - db: BadgerDB instance (may be shared with other components)
//   - prefix: Key prefix for nonce records (default: "nonce:")
func NewBadgerLedger(db *badger.DB, prefix string) *BadgerLedger {
	if prefix == "" {
		prefix = DefaultBadgerLedgerPrefix
	}
	return &BadgerLedger{
		db:     db,
		prefix: []byte(prefix),
	}
}

// OpenBadgerLedger opens (or creates) a Badger database at path and returns
// a ledger that closes it on Close.
func OpenBadgerLedger(path string) (*BadgerLedger, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger ledger: %w", err)
	}
	l := NewBadgerLedger(db, DefaultBadgerLedgerPrefix)
	l.ownsDB = true
	return l, nil
}

func (l *BadgerLedger) makeKey(token string) []byte {
	key := make([]byte, 0, len(l.prefix)+len(token))
	key = append(key, l.prefix...)
	return append(key, token...)
}

func (l *BadgerLedger) isClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// Exists implements NonceLedger.
func (l *BadgerLedger) Exists(_ context.Context, token string) (bool, error) {
	if l.isClosed() {
		LedgerOperationsTotal.WithLabelValues("badger", "exists", "failure").Inc()
		return false, ErrLedgerClosed
	}

	var found bool
	err := l.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(l.makeKey(token))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		LedgerOperationsTotal.WithLabelValues("badger", "exists", "failure").Inc()
		return false, fmt.Errorf("badger ledger lookup: %w", err)
	}
	LedgerOperationsTotal.WithLabelValues("badger", "exists", "success").Inc()
	return found, nil
}

// Insert implements NonceLedger.
//
// A concurrent commit of the same key surfaces as badger.ErrConflict. The
// ledger then re-reads the key: if it exists the insert lost the race and
// reports ErrDuplicateToken, otherwise the conflict came from an unrelated
// key and the insert is attempted once more.
func (l *BadgerLedger) Insert(ctx context.Context, rec *NonceRecord) error {
	if l.isClosed() {
		LedgerOperationsTotal.WithLabelValues("badger", "insert", "failure").Inc()
		return ErrLedgerClosed
	}

	err := l.insertOnce(rec)
	for attempt := 0; attempt < 2 && errors.Is(err, badger.ErrConflict); attempt++ {
		exists, xerr := l.Exists(ctx, rec.Token)
		if xerr != nil {
			err = xerr
			break
		}
		if exists {
			err = ErrDuplicateToken
			break
		}
		if attempt == 0 {
			err = l.insertOnce(rec)
		}
	}

	switch {
	case err == nil:
		LedgerOperationsTotal.WithLabelValues("badger", "insert", "success").Inc()
		return nil
	case errors.Is(err, ErrDuplicateToken):
		LedgerOperationsTotal.WithLabelValues("badger", "insert", "duplicate").Inc()
		logging.Warn().
			Str("modality", rec.KeyID.String()).
			Str("token", logging.SanitizeToken(rec.Token)).
			Msg("Duplicate token insert rejected")
		return ErrDuplicateToken
	default:
		LedgerOperationsTotal.WithLabelValues("badger", "insert", "failure").Inc()
		return fmt.Errorf("badger ledger insert: %w", err)
	}
}

func (l *BadgerLedger) insertOnce(rec *NonceRecord) error {
	key := l.makeKey(rec.Token)
	return l.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return ErrDuplicateToken
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		stored := *rec
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now().UTC()
		}
		data, err := json.Marshal(&stored)
		if err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(key, data))
	})
}

// Get returns the stored record for token.
func (l *BadgerLedger) Get(token string) (*NonceRecord, error) {
	if l.isClosed() {
		return nil, ErrLedgerClosed
	}
	var rec NonceRecord
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(l.makeKey(token))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close implements NonceLedger. The database is closed only when the ledger
// opened it.
func (l *BadgerLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.ownsDB {
		return l.db.Close()
	}
	return nil
}
