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

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/civicmap/internal/config"
	"github.com/tomtom215/civicmap/internal/logging"
	"github.com/tomtom215/civicmap/internal/metrics"
)

// User is the principal a token resolves to. The validator only reads it.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Name         string
	Blocked      bool
}

// UserDirectory looks up users by username.
type UserDirectory interface {
	// LookupUser returns ErrUserNotFound for unknown usernames.
	LookupUser(ctx context.Context, username string) (*User, error)
}

// CredentialVerifier compares a plaintext password with a stored hash.
type CredentialVerifier interface {
	Verify(plaintext, storedHash string, userID int64) bool
}

// BcryptVerifier verifies bcrypt hashes.
type BcryptVerifier struct{}

// Verify implements CredentialVerifier. bcrypt.CompareHashAndPassword is
// constant time in the password.
func (BcryptVerifier) Verify(plaintext, storedHash string, _ int64) bool {
	if storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintext)) == nil
}

// HashPassword returns a bcrypt hash at the given cost, or bcrypt.DefaultCost when cost is 0.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// StaticUserDirectory is an in-memory UserDirectory.
type StaticUserDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewStaticUserDirectory creates a directory holding users.
func NewStaticUserDirectory(users ...User) *StaticUserDirectory {
	d := &StaticUserDirectory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[u.Username] = u
	}
	return d
}

// Put adds or replaces a user.
func (d *StaticUserDirectory) Put(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.Username] = u
}

// LookupUser implements UserDirectory.
func (d *StaticUserDirectory) LookupUser(_ context.Context, username string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

// BreakerDirectory guards a UserDirectory with a circuit breaker. An unknown
// user is an answer, not a failure, and never counts toward tripping.
type BreakerDirectory struct {
	next UserDirectory
	cb   *gobreaker.CircuitBreaker[*User]
	name string
}

// NewBreakerDirectory wraps next. The breaker opens after cfg.Threshold
// consecutive failures and probes again after cfg.Timeout.
func NewBreakerDirectory(next UserDirectory, cfg config.BreakerConfig) *BreakerDirectory {
	name := "user-directory"
	threshold := cfg.Threshold
	if threshold == 0 {
		threshold = 5
	}
	maxRequests := cfg.MaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}

	metrics.InitBreaker(name)

	cb := gobreaker.NewCircuitBreaker[*User](gobreaker.Settings{
		Name:        name,
		MaxRequests: maxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= threshold
			if trip {
				logging.Warn().
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening user directory circuit")
			}
			return trip
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUserNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", metrics.BreakerStateString(from)).
				Str("to", metrics.BreakerStateString(to)).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordBreakerTransition(name, from, to)
		},
	})

	return &BreakerDirectory{next: next, cb: cb, name: name}
}

// LookupUser implements UserDirectory. A rejected call returns
// ErrDirectoryUnavailable.
func (d *BreakerDirectory) LookupUser(ctx context.Context, username string) (*User, error) {
	u, err := d.cb.Execute(func() (*User, error) {
		return d.next.LookupUser(ctx, username)
	})
	switch {
	case err == nil, errors.Is(err, ErrUserNotFound):
		metrics.RecordBreakerResult(d.name, "success")
		return u, err
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordBreakerResult(d.name, "rejected")
		logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] User lookup rejected")
		return nil, fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	default:
		metrics.RecordBreakerResult(d.name, "failure")
		return nil, err
	}
}

// State returns the breaker state.
func (d *BreakerDirectory) State() gobreaker.State {
	return d.cb.State()
}
