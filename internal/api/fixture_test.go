// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/civicmap/internal/audit"
	"github.com/tomtom215/civicmap/internal/auth"
	"github.com/tomtom215/civicmap/internal/config"
	"github.com/tomtom215/civicmap/internal/database"
	"github.com/tomtom215/civicmap/internal/models"
)

const (
	testModality = auth.ModalityID(1)
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "secret123"
)

// memoryStore is an in-memory IssueStore and CommentStore with the same
// visibility rules as the DuckDB implementation.
type memoryStore struct {
	mu       sync.Mutex
	issues   []models.Issue
	comments []models.Comment
	pingErr  error
	failNext error
}

func (s *memoryStore) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *memoryStore) Ping(context.Context) error { return s.pingErr }

func (s *memoryStore) ListIssues(_ context.Context, filter models.IssueFilter, userID int64) ([]models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	var out []models.Issue
	for i := len(s.issues) - 1; i >= 0; i-- {
		issue := s.issues[i]
		if !issue.VisibleTo(userID) {
			continue
		}
		if filter.Box != nil && !filter.Box.Contains(issue.Latitude, issue.Longitude) {
			continue
		}
		issue.MyIssue = issue.CreatedBy == userID
		out = append(out, issue)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *memoryStore) GetIssue(_ context.Context, id, userID int64) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	for _, issue := range s.issues {
		if issue.ID == id {
			issue.MyIssue = issue.CreatedBy == userID
			return &issue, nil
		}
	}
	return nil, database.ErrIssueNotFound
}

func (s *memoryStore) CreateIssue(_ context.Context, userID int64, in *models.IssueInput) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue := models.Issue{
		ID:          int64(len(s.issues) + 1),
		Title:       in.Title,
		Description: in.Description,
		Address:     in.Address,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Language:    in.Language,
		State:       models.IssueStatePublished,
		CreatedBy:   userID,
		Created:     time.Now().UTC(),
		Updated:     time.Now().UTC(),
	}
	s.issues = append(s.issues, issue)
	issue.MyIssue = true
	return &issue, nil
}

func (s *memoryStore) UpdateIssue(_ context.Context, id, userID int64, patch *models.IssuePatch) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.issues {
		issue := &s.issues[i]
		if issue.ID != id {
			continue
		}
		if issue.CreatedBy != userID {
			return nil, database.ErrNotIssueOwner
		}
		if patch.Title != nil {
			issue.Title = *patch.Title
		}
		if patch.Description != nil {
			issue.Description = *patch.Description
		}
		if patch.Address != nil {
			issue.Address = *patch.Address
		}
		if patch.Latitude != nil {
			issue.Latitude = *patch.Latitude
		}
		if patch.Longitude != nil {
			issue.Longitude = *patch.Longitude
		}
		out := *issue
		out.MyIssue = true
		return &out, nil
	}
	return nil, database.ErrIssueNotFound
}

func (s *memoryStore) ListComments(_ context.Context, issueID, userID int64) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, err
	}
	var out []models.Comment
	for _, c := range s.comments {
		if c.IssueID == issueID && c.State == models.CommentStatePublished {
			c.CreatedByCurrentUser = c.CreatedBy == userID
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memoryStore) CreateComment(_ context.Context, in *models.CommentInput) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, issue := range s.issues {
		found = found || issue.ID == in.IssueID
	}
	if !found {
		return nil, database.ErrIssueNotFound
	}
	c := models.Comment{
		ID:          int64(len(s.comments) + 1),
		IssueID:     in.IssueID,
		ParentID:    in.ParentID,
		CreatedBy:   in.CreatedBy,
		Fullname:    in.Fullname,
		Description: in.Description,
		Moderation:  in.Moderation,
		State:       models.CommentStatePublished,
	}
	s.comments = append(s.comments, c)
	c.CreatedByCurrentUser = true
	return &c, nil
}

// recordingPublisher captures published auth events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*audit.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *audit.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) last(t *testing.T) *audit.Event {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		t.Fatal("no auth event published")
	}
	return p.events[len(p.events)-1]
}

type apiFixture struct {
	store     *memoryStore
	ledger    *auth.MemoryLedger
	users     *auth.StaticUserDirectory
	publisher *recordingPublisher
	key       *auth.Key
	handler   http.Handler
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	comments      config.CommentsConfig
	failureStatus int
}

func withComments(c config.CommentsConfig) fixtureOption {
	return func(fc *fixtureConfig) { fc.comments = c }
}

func withAuthFailureStatus(status int) fixtureOption {
	return func(fc *fixtureConfig) { fc.failureStatus = status }
}

func newAPIFixture(t *testing.T, opts ...fixtureOption) *apiFixture {
	t.Helper()

	fc := fixtureConfig{comments: config.CommentsConfig{Enabled: true}}
	for _, opt := range opts {
		opt(&fc)
	}

	hash, err := auth.HashPassword(testPassword, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	f := &apiFixture{
		store:     &memoryStore{},
		ledger:    auth.NewMemoryLedger(),
		publisher: &recordingPublisher{},
		key:       &auth.Key{ModalityID: testModality, Secret: []byte(testSecret), Name: "test"},
		users: auth.NewStaticUserDirectory(
			auth.User{ID: 1, Username: "alice", PasswordHash: hash, Name: "Alice Papadopoulou"},
			auth.User{ID: 2, Username: "bob", PasswordHash: hash, Name: "Bob"},
			auth.User{ID: 3, Username: "mallory", PasswordHash: hash, Blocked: true},
		),
	}

	validator, err := auth.NewValidator(auth.ValidatorConfig{
		Keys:   auth.NewStaticKeyStore(*f.key, auth.Key{ModalityID: 9, Secret: []byte("short"), Name: "weak"}),
		Ledger: f.ledger,
		Users:  f.users,
	})
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}

	h := NewHandler(HandlerConfig{
		Issues:   f.store,
		Comments: f.store,
		DB:       f.store,
		Comment:  fc.comments,
		Version:  "test",
	})
	mw := NewChiMiddleware(&ChiMiddlewareConfig{CORSAllowedOrigins: []string{"*"}, RateLimitDisabled: true})
	f.handler = NewRouter(h, NewRequestAuthenticator(validator, f.publisher), mw, nil, fc.failureStatus).SetupChi()
	return f
}

// seedIssue stores an issue directly and returns its id.
func (f *apiFixture) seedIssue(title string, createdBy int64, lat, lng float64, mutate func(*models.Issue)) int64 {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	issue := models.Issue{
		ID:        int64(len(f.store.issues) + 1),
		Title:     title,
		Latitude:  lat,
		Longitude: lng,
		State:     models.IssueStatePublished,
		CreatedBy: createdBy,
	}
	if mutate != nil {
		mutate(&issue)
	}
	f.store.issues = append(f.store.issues, issue)
	return issue.ID
}

func (f *apiFixture) token(t *testing.T, username string) string {
	t.Helper()
	tok, err := auth.MintToken(auth.NewAESCodec(), f.key, username, testPassword, time.Now())
	if err != nil {
		t.Fatalf("MintToken: %v", err)
	}
	return tok
}

// authValues returns fresh token parameters for username plus extra.
func (f *apiFixture) authValues(t *testing.T, username string, extra url.Values) url.Values {
	t.Helper()
	v := url.Values{}
	v.Set("token", f.token(t, username))
	v.Set("m_id", testModality.String())
	v.Set("l", "en")
	for k, vals := range extra {
		v[k] = vals
	}
	return v
}

// do sends method to path. GET parameters go in the query, others in a
// url-encoded body.
func (f *apiFixture) do(t *testing.T, method, path string, params url.Values) (*httptest.ResponseRecorder, *models.APIResponse) {
	t.Helper()

	var req *http.Request
	if method == http.MethodGet || method == http.MethodDelete {
		req = httptest.NewRequest(method, path+"?"+params.Encode(), nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(params.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.RemoteAddr = "192.0.2.1:40000"

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var resp models.APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not an envelope: %v\n%s", err, w.Body.String())
	}
	return w, &resp
}

// decodeData re-decodes the envelope data into out.
func decodeData(t *testing.T, resp *models.APIResponse, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

var errStoreDown = errors.New("store is down")
