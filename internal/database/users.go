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
)

// LookupUser implements auth.UserDirectory over the users table.
func (db *DB) LookupUser(ctx context.Context, username string) (*auth.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	u := &auth.User{}
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, password, name, block FROM users WHERE username = ?`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.Blocked)
	if errors.Is(err, sql.ErrNoRows) {
		observe("select", "users", start, nil)
		return nil, auth.ErrUserNotFound
	}
	observe("select", "users", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	return u, nil
}

// GetUserByID returns the user with the given id.
func (db *DB) GetUserByID(ctx context.Context, id int64) (*auth.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	u := &auth.User{}
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, password, name, block FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Name, &u.Blocked)
	if errors.Is(err, sql.ErrNoRows) {
		observe("select", "users", start, nil)
		return nil, auth.ErrUserNotFound
	}
	observe("select", "users", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	return u, nil
}

// CreateUser inserts a user and returns its id. PasswordHash must already be
// a bcrypt hash.
func (db *DB) CreateUser(ctx context.Context, u *auth.User) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var id int64
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (username, password, name, block, created) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		u.Username, u.PasswordHash, u.Name, u.Blocked, time.Now().UTC()).Scan(&id)
	observe("insert", "users", start, err)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("failed to create user: %w", err)
	}
	return id, nil
}

// SetUserBlocked blocks or unblocks a user.
func (db *DB) SetUserBlocked(ctx context.Context, id int64, blocked bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `UPDATE users SET block = ? WHERE id = ?`, blocked, id)
	observe("update", "users", start, err)
	if err != nil {
		return fmt.Errorf("failed to update user %d: %w", id, err)
	}
	return nil
}
