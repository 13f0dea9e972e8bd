// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

func newTestBadgerLedger(t *testing.T) *BadgerLedger {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("Failed to open BadgerDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBadgerLedger(db, "")
}

// ledgerFactories lists every in-package NonceLedger so each contract test
// runs against all of them.
func ledgerFactories() map[string]func(t *testing.T) NonceLedger {
	return map[string]func(t *testing.T) NonceLedger{
		"memory": func(t *testing.T) NonceLedger { return NewMemoryLedger() },
		"badger": func(t *testing.T) NonceLedger { return newTestBadgerLedger(t) },
	}
}

func TestNonceLedger_InsertAndExists(t *testing.T) {
	ctx := context.Background()

	for name, newLedger := range ledgerFactories() {
		t.Run(name, func(t *testing.T) {
			ledger := newLedger(t)
			defer ledger.Close()

			exists, err := ledger.Exists(ctx, "tok-1")
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if exists {
				t.Fatal("empty ledger reports token as present")
			}

			rec := &NonceRecord{KeyID: 1, UserID: 10, Method: "GET", Token: "tok-1", UnixTime: 1700000000}
			if err := ledger.Insert(ctx, rec); err != nil {
				t.Fatalf("Insert: %v", err)
			}

			exists, err = ledger.Exists(ctx, "tok-1")
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if !exists {
				t.Error("inserted token not found")
			}

			// Same token under another modality is still a duplicate.
			dup := &NonceRecord{KeyID: 2, UserID: 11, Method: "POST", Token: "tok-1", UnixTime: 1700000001}
			if err := ledger.Insert(ctx, dup); !errors.Is(err, ErrDuplicateToken) {
				t.Errorf("expected ErrDuplicateToken, got %v", err)
			}
		})
	}
}

func TestNonceLedger_Closed(t *testing.T) {
	ctx := context.Background()

	for name, newLedger := range ledgerFactories() {
		t.Run(name, func(t *testing.T) {
			ledger := newLedger(t)
			if err := ledger.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}
			if _, err := ledger.Exists(ctx, "x"); !errors.Is(err, ErrLedgerClosed) {
				t.Errorf("Exists after Close: %v", err)
			}
			if err := ledger.Insert(ctx, &NonceRecord{Token: "x"}); !errors.Is(err, ErrLedgerClosed) {
				t.Errorf("Insert after Close: %v", err)
			}
		})
	}
}

func TestNonceLedger_ConcurrentInsert(t *testing.T) {
	ctx := context.Background()
	const workers = 50

	for name, newLedger := range ledgerFactories() {
		t.Run(name, func(t *testing.T) {
			ledger := newLedger(t)
			defer ledger.Close()

			var wg sync.WaitGroup
			var ok, dup, other atomic.Int32
			start := make(chan struct{})

			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					err := ledger.Insert(ctx, &NonceRecord{KeyID: 1, UserID: int64(i), Token: "contended"})
					switch {
					case err == nil:
						ok.Add(1)
					case errors.Is(err, ErrDuplicateToken):
						dup.Add(1)
					default:
						other.Add(1)
					}
				}(i)
			}
			close(start)
			wg.Wait()

			if ok.Load() != 1 {
				t.Errorf("successful inserts = %d, want 1", ok.Load())
			}
			if dup.Load() != workers-1 {
				t.Errorf("duplicates = %d, want %d (other errors: %d)", dup.Load(), workers-1, other.Load())
			}
		})
	}
}

func TestMemoryLedger_Get(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ledger := NewMemoryLedger()
	for i := 0; i < 5; i++ {
		if err := ledger.Insert(ctx, &NonceRecord{Token: fmt.Sprintf("t%d", i), UserID: int64(i)}); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if ledger.Len() != 5 {
		t.Errorf("Len = %d, want 5", ledger.Len())
	}
	rec, ok := ledger.Get("t3")
	if !ok || rec.UserID != 3 || rec.CreatedAt.IsZero() {
		t.Errorf("Get(t3) = %+v, %v", rec, ok)
	}
}

func TestBadgerLedger_PersistsRecord(t *testing.T) {
	ctx := context.Background()
	ledger := newTestBadgerLedger(t)

	rec := &NonceRecord{KeyID: 3, UserID: 99, Method: "PUT", Token: "persist-me", UnixTime: 1700000123}
	if err := ledger.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := ledger.Get("persist-me")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.KeyID != 3 || got.UserID != 99 || got.Method != "PUT" || got.UnixTime != 1700000123 {
		t.Errorf("unexpected record %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestOpenBadgerLedger(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	ledger, err := OpenBadgerLedger(dir)
	if err != nil {
		t.Fatalf("OpenBadgerLedger: %v", err)
	}
	if err := ledger.Insert(ctx, &NonceRecord{Token: "durable"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := ledger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenBadgerLedger(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if exists, _ := reopened.Exists(ctx, "durable"); !exists {
		t.Error("record did not survive reopening the ledger")
	}
}
