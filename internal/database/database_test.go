// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package database

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/civicmap/internal/auth"
	"github.com/tomtom215/civicmap/internal/config"
	"github.com/tomtom215/civicmap/internal/models"
)

// testDBSemaphore limits concurrent database creation to prevent resource exhaustion in CI.
// Too many concurrent DuckDB CGO calls can cause hangs, so creation is fully serialized
// and the semaphore is held until the test completes.
var testDBSemaphore = make(chan struct{}, 1)

// setupTestDB creates a new in-memory test database with timeout protection.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() {
		<-testDBSemaphore
	})

	cfg := &config.DatabaseConfig{
		Path:      ":memory:",
		MaxMemory: "1GB",
	}

	type result struct {
		db  *DB
		err error
	}

	resultCh := make(chan result, 1)
	go func() {
		db, err := New(cfg)
		resultCh <- result{db: db, err: err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			t.Fatalf("Failed to create test database: %v", res.err)
		}
		t.Cleanup(func() {
			if err := res.db.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
		return res.db
	case <-time.After(120 * time.Second):
		t.Fatalf("Timeout: database creation took longer than 120s (DuckDB may be under resource pressure)")
		return nil
	}
}

func createTestUser(t *testing.T, db *DB, username string) int64 {
	t.Helper()
	hash, err := auth.HashPassword("secret", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	id, err := db.CreateUser(context.Background(), &auth.User{Username: username, Name: username, PasswordHash: hash})
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return id
}

func TestNew_CreatesSchema(t *testing.T) {
	db := setupTestDB(t)

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	counts, err := db.GetRecordCounts(context.Background())
	if err != nil {
		t.Fatalf("GetRecordCounts: %v", err)
	}
	for _, table := range allTables {
		if n, ok := counts[table]; !ok || n != 0 {
			t.Errorf("table %s: count=%d present=%v, want empty table", table, n, ok)
		}
	}
	if db.GetDatabasePath() != ":memory:" {
		t.Errorf("GetDatabasePath() = %q", db.GetDatabasePath())
	}
}

func TestNew_FileDatabaseReopens(t *testing.T) {
	testDBSemaphore <- struct{}{}
	defer func() { <-testDBSemaphore }()

	path := filepath.Join(t.TempDir(), "nested", "civicmap.duckdb")
	cfg := &config.DatabaseConfig{Path: path, MaxMemory: "256MB", Threads: 2}

	db, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := db.CreateAPIKey(context.Background(), &auth.Key{ModalityID: 7, Secret: []byte("0123456789abcdef")}); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err = New(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if _, err := db.Resolve(context.Background(), 7); err != nil {
		t.Errorf("key lost across reopen: %v", err)
	}
}

func TestKeys(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.Resolve(ctx, 99); !errors.Is(err, auth.ErrKeyNotFound) {
		t.Fatalf("unknown modality: got %v, want ErrKeyNotFound", err)
	}

	key := &auth.Key{ModalityID: 3, Name: "android", Secret: []byte("0123456789abcdef0123")}
	if err := db.CreateAPIKey(ctx, key); err != nil {
		t.Fatalf("CreateAPIKey: %v", err)
	}
	if err := db.CreateAPIKey(ctx, key); !errors.Is(err, ErrDuplicateModality) {
		t.Errorf("duplicate modality: got %v, want ErrDuplicateModality", err)
	}

	got, err := db.Resolve(ctx, 3)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got.ModalityID != 3 || got.Name != "android" || string(got.Secret) != "0123456789abcdef0123" {
		t.Errorf("Resolve() = %+v", got)
	}

	if err := db.DisableAPIKey(ctx, 3); err != nil {
		t.Fatalf("DisableAPIKey: %v", err)
	}
	if _, err := db.Resolve(ctx, 3); !errors.Is(err, auth.ErrKeyNotFound) {
		t.Errorf("disabled modality: got %v, want ErrKeyNotFound", err)
	}
}

func TestUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if _, err := db.LookupUser(ctx, "nobody"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("unknown user: got %v, want ErrUserNotFound", err)
	}

	id := createTestUser(t, db, "alice")
	if _, err := db.CreateUser(ctx, &auth.User{Username: "alice", PasswordHash: "x"}); !errors.Is(err, ErrDuplicateUsername) {
		t.Errorf("duplicate username: got %v, want ErrDuplicateUsername", err)
	}

	u, err := db.LookupUser(ctx, "alice")
	if err != nil {
		t.Fatalf("LookupUser: %v", err)
	}
	if u.ID != id || u.Blocked {
		t.Errorf("LookupUser() = %+v", u)
	}
	if !(auth.BcryptVerifier{}).Verify("secret", u.PasswordHash, u.ID) {
		t.Error("stored hash does not verify")
	}

	if err := db.SetUserBlocked(ctx, id, true); err != nil {
		t.Fatalf("SetUserBlocked: %v", err)
	}
	u, err = db.GetUserByID(ctx, id)
	if err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}
	if !u.Blocked {
		t.Error("user should be blocked")
	}
	if _, err := db.GetUserByID(ctx, id+100); !errors.Is(err, auth.ErrUserNotFound) {
		t.Errorf("GetUserByID unknown: got %v", err)
	}
}

func TestTokenLedger_Contract(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	ledger := NewTokenLedger(db)

	rec := &auth.NonceRecord{KeyID: 1, UserID: 42, Method: "GET", Token: "tok-1", UnixTime: 1_750_000_000}

	exists, err := ledger.Exists(ctx, rec.Token)
	if err != nil || exists {
		t.Fatalf("Exists before insert = %v, %v", exists, err)
	}
	if err := ledger.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if exists, err := ledger.Exists(ctx, rec.Token); err != nil || !exists {
		t.Fatalf("Exists after insert = %v, %v", exists, err)
	}
	if err := ledger.Insert(ctx, rec); !errors.Is(err, auth.ErrDuplicateToken) {
		t.Fatalf("second insert: got %v, want ErrDuplicateToken", err)
	}

	// Scope is global: the same token under another modality is still a replay.
	other := *rec
	other.KeyID = 2
	if err := ledger.Insert(ctx, &other); !errors.Is(err, auth.ErrDuplicateToken) {
		t.Errorf("cross-modality insert: got %v, want ErrDuplicateToken", err)
	}

	got, err := ledger.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.KeyID != 1 || got.UserID != 42 || got.Method != "GET" || got.UnixTime != rec.UnixTime {
		t.Errorf("Get() = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	n, err := ledger.Count(ctx)
	if err != nil || n != 1 {
		t.Errorf("Count() = %d, %v; want 1", n, err)
	}
	if err := ledger.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := db.Ping(ctx); err != nil {
		t.Errorf("closing the ledger must not close the database: %v", err)
	}
}

func TestTokenLedger_ConcurrentInsert(t *testing.T) {
	db := setupTestDB(t)
	ledger := NewTokenLedger(db)

	const workers = 50
	var (
		wg         sync.WaitGroup
		successes  atomic.Int32
		duplicates atomic.Int32
		start      = make(chan struct{})
		errs       = make(chan error, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			err := ledger.Insert(context.Background(), &auth.NonceRecord{
				KeyID: 1, UserID: int64(i), Method: "POST", Token: "same-token", UnixTime: 1,
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, auth.ErrDuplicateToken):
				duplicates.Add(1)
			default:
				errs <- err
			}
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected insert error: %v", err)
	}
	if got := successes.Load(); got != 1 {
		t.Fatalf("successes = %d, want exactly 1", got)
	}
	if got := duplicates.Load(); got != workers-1 {
		t.Errorf("duplicates = %d, want %d", got, workers-1)
	}
}

func TestIssues_Visibility(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	mk := func(owner int64, title string, lat, lng float64) *models.Issue {
		t.Helper()
		issue, err := db.CreateIssue(ctx, owner, &models.IssueInput{Title: title, Latitude: lat, Longitude: lng})
		if err != nil {
			t.Fatalf("CreateIssue: %v", err)
		}
		return issue
	}
	published := mk(alice, "published", 40.63, 22.94)
	moderated := mk(alice, "moderated", 40.64, 22.95)
	hidden := mk(bob, "unpublished", 40.65, 22.96)
	far := mk(bob, "far away", 37.98, 23.72)

	if err := db.SetIssueModeration(ctx, moderated.ID, true); err != nil {
		t.Fatalf("SetIssueModeration: %v", err)
	}
	if err := db.SetIssueState(ctx, hidden.ID, 0); err != nil {
		t.Fatalf("SetIssueState: %v", err)
	}
	if err := db.SetIssueState(ctx, 9999, 0); !errors.Is(err, ErrIssueNotFound) {
		t.Errorf("SetIssueState unknown: got %v", err)
	}

	titles := func(issues []models.Issue) map[string]bool {
		out := make(map[string]bool, len(issues))
		for _, i := range issues {
			out[i.Title] = true
		}
		return out
	}

	forAlice, err := db.ListIssues(ctx, models.IssueFilter{}, alice)
	if err != nil {
		t.Fatalf("ListIssues(alice): %v", err)
	}
	if got := titles(forAlice); len(got) != 3 || !got["published"] || !got["moderated"] || !got["far away"] {
		t.Errorf("alice sees %v", got)
	}
	for _, i := range forAlice {
		if i.MyIssue != (i.CreatedBy == alice) {
			t.Errorf("issue %q myIssue=%v", i.Title, i.MyIssue)
		}
	}

	forBob, err := db.ListIssues(ctx, models.IssueFilter{}, bob)
	if err != nil {
		t.Fatalf("ListIssues(bob): %v", err)
	}
	if got := titles(forBob); len(got) != 2 || got["moderated"] || got["unpublished"] {
		t.Errorf("bob sees %v", got)
	}

	box := &models.BoundingBox{MinLat: 40, MaxLat: 41, MinLng: 22, MaxLng: 23}
	boxed, err := db.ListIssues(ctx, models.IssueFilter{Box: box}, bob)
	if err != nil {
		t.Fatalf("ListIssues(box): %v", err)
	}
	if len(boxed) != 1 || boxed[0].ID != published.ID {
		t.Errorf("boxed result = %+v", boxed)
	}

	limited, err := db.ListIssues(ctx, models.IssueFilter{Limit: 1}, alice)
	if err != nil {
		t.Fatalf("ListIssues(limit): %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d issues", len(limited))
	}

	inverted := &models.BoundingBox{MinLat: 41, MaxLat: 40}
	if _, err := db.ListIssues(ctx, models.IssueFilter{Box: inverted}, bob); !errors.Is(err, models.ErrInvalidBoundingBox) {
		t.Errorf("inverted box: got %v", err)
	}

	got, err := db.GetIssue(ctx, far.ID, alice)
	if err != nil {
		t.Fatalf("GetIssue: %v", err)
	}
	if got.Title != "far away" || got.MyIssue {
		t.Errorf("GetIssue() = %+v", got)
	}
	if _, err := db.GetIssue(ctx, 9999, alice); !errors.Is(err, ErrIssueNotFound) {
		t.Errorf("GetIssue unknown: got %v", err)
	}
}

func TestUpdateIssue(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	issue, err := db.CreateIssue(ctx, alice, &models.IssueInput{Title: "old", Address: "here", Latitude: 1, Longitude: 2, Language: "el"})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if issue.Language != "el" || issue.State != models.IssueStatePublished || !issue.MyIssue {
		t.Errorf("CreateIssue() = %+v", issue)
	}

	title := "new"
	lat := 10.5
	if _, err := db.UpdateIssue(ctx, issue.ID, bob, &models.IssuePatch{Title: &title}); !errors.Is(err, ErrNotIssueOwner) {
		t.Fatalf("bob updating alice's issue: got %v, want ErrNotIssueOwner", err)
	}
	if _, err := db.UpdateIssue(ctx, 9999, alice, &models.IssuePatch{Title: &title}); !errors.Is(err, ErrIssueNotFound) {
		t.Fatalf("unknown issue: got %v", err)
	}

	updated, err := db.UpdateIssue(ctx, issue.ID, alice, &models.IssuePatch{Title: &title, Latitude: &lat})
	if err != nil {
		t.Fatalf("UpdateIssue: %v", err)
	}
	if updated.Title != "new" || updated.Latitude != 10.5 || updated.Longitude != 2 || updated.Address != "here" {
		t.Errorf("UpdateIssue() = %+v", updated)
	}
	if updated.Updated.Before(issue.Updated) {
		t.Errorf("updated timestamp went backwards: %v < %v", updated.Updated, issue.Updated)
	}

	same, err := db.UpdateIssue(ctx, issue.ID, alice, &models.IssuePatch{})
	if err != nil || same.Title != "new" {
		t.Errorf("empty patch = %+v, %v", same, err)
	}
}

func TestComments(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	issue, err := db.CreateIssue(ctx, alice, &models.IssueInput{Title: "issue", Latitude: 1, Longitude: 1})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}

	if _, err := db.CreateComment(ctx, &models.CommentInput{IssueID: 9999, CreatedBy: bob}); !errors.Is(err, ErrIssueNotFound) {
		t.Fatalf("comment on unknown issue: got %v", err)
	}

	first, err := db.CreateComment(ctx, &models.CommentInput{IssueID: issue.ID, CreatedBy: bob, Fullname: "Bob", Description: "first", Moderation: true})
	if err != nil {
		t.Fatalf("CreateComment: %v", err)
	}
	if !first.Moderation || !first.CreatedByCurrentUser || first.State != models.CommentStatePublished {
		t.Errorf("CreateComment() = %+v", first)
	}
	if _, err := db.CreateComment(ctx, &models.CommentInput{IssueID: issue.ID, ParentID: first.ID, CreatedBy: alice, Fullname: "Alice", Description: "reply"}); err != nil {
		t.Fatalf("CreateComment reply: %v", err)
	}

	list, err := db.ListComments(ctx, issue.ID, alice)
	if err != nil {
		t.Fatalf("ListComments: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListComments() returned %d comments, want 2", len(list))
	}
	if list[0].Description != "first" || list[0].CreatedByCurrentUser {
		t.Errorf("first comment = %+v", list[0])
	}
	if list[1].ParentID != first.ID || !list[1].CreatedByCurrentUser {
		t.Errorf("reply = %+v", list[1])
	}

	empty, err := db.ListComments(ctx, 9999, alice)
	if err != nil || len(empty) != 0 {
		t.Errorf("ListComments(unknown) = %v, %v", empty, err)
	}
}

func TestSeedDemoData(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	if err := db.SeedDemoData(ctx); err != nil {
		t.Fatalf("SeedDemoData: %v", err)
	}
	// Second run is a no-op.
	if err := db.SeedDemoData(ctx); err != nil {
		t.Fatalf("SeedDemoData again: %v", err)
	}

	key, err := db.Resolve(ctx, DemoModalityID)
	if err != nil {
		t.Fatalf("Resolve demo modality: %v", err)
	}
	if err := auth.ValidateKey(key, auth.MinSecretLength); err != nil {
		t.Errorf("demo key is weak: %v", err)
	}

	counts, err := db.GetRecordCounts(ctx)
	if err != nil {
		t.Fatalf("GetRecordCounts: %v", err)
	}
	want := map[string]int64{"api_keys": 1, "users": 3, "issues": 5, "comments": 5, "api_tokens": 0}
	for table, n := range want {
		if counts[table] != n {
			t.Errorf("%s count = %d, want %d", table, counts[table], n)
		}
	}

	alice, err := db.LookupUser(ctx, "alice")
	if err != nil {
		t.Fatalf("LookupUser: %v", err)
	}
	bob, err := db.LookupUser(ctx, "bob")
	if err != nil {
		t.Fatalf("LookupUser: %v", err)
	}
	// The moderated issue is bob's own; the resolved one is hidden from everyone.
	for _, tc := range []struct {
		name string
		id   int64
		want int
	}{
		{"alice", alice.ID, 3},
		{"bob", bob.ID, 4},
	} {
		issues, err := db.ListIssues(ctx, models.IssueFilter{}, tc.id)
		if err != nil {
			t.Fatalf("ListIssues(%s): %v", tc.name, err)
		}
		if len(issues) != tc.want {
			t.Errorf("%s sees %d demo issues, want %d", tc.name, len(issues), tc.want)
		}
	}

	mallory, err := db.LookupUser(ctx, "mallory")
	if err != nil {
		t.Fatalf("LookupUser: %v", err)
	}
	if !mallory.Blocked {
		t.Error("mallory should be blocked")
	}
}

func TestValidator_WithDuckDB(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	if err := db.SeedDemoData(ctx); err != nil {
		t.Fatalf("SeedDemoData: %v", err)
	}

	now := time.Unix(1_750_000_000, 0)
	v, err := auth.NewValidator(auth.ValidatorConfig{
		Keys:   db,
		Users:  db,
		Ledger: NewTokenLedger(db),
		Clock:  func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	key, err := db.Resolve(ctx, DemoModalityID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	token, err := auth.MintToken(auth.NewAESCodec(), key, "alice", DemoPassword, now)
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	req := auth.Request{Token: token, ModalityID: DemoModalityID, Language: "en", Method: "GET"}

	res, err := v.Validate(ctx, req)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if res.Username != "alice" {
		t.Errorf("Validate() user = %q", res.Username)
	}
	if _, err := v.Validate(ctx, req); !errors.Is(err, auth.ErrReplayedToken) {
		t.Errorf("resubmission: got %v, want ErrReplayedToken", err)
	}
}
