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

// Resolve implements auth.KeyStore over the api_keys table. Only active keys
// (state = 1) resolve.
func (db *DB) Resolve(ctx context.Context, id auth.ModalityID) (*auth.Key, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	var name, secret string
	err := db.conn.QueryRowContext(ctx,
		`SELECT name, skey FROM api_keys WHERE id = ? AND state = 1`, int64(id)).Scan(&name, &secret)
	if errors.Is(err, sql.ErrNoRows) {
		observe("select", "api_keys", start, nil)
		return nil, auth.ErrKeyNotFound
	}
	observe("select", "api_keys", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve modality %s: %w", id, err)
	}

	return &auth.Key{ModalityID: id, Secret: []byte(secret), Name: name}, nil
}

// CreateAPIKey provisions a modality secret.
func (db *DB) CreateAPIKey(ctx context.Context, key *auth.Key) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO api_keys (id, name, skey, state, created) VALUES (?, ?, ?, 1, ?)`,
		int64(key.ModalityID), key.Name, string(key.Secret), time.Now().UTC())
	observe("insert", "api_keys", start, err)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicateModality
		}
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

// DisableAPIKey marks a modality inactive so it no longer resolves.
func (db *DB) DisableAPIKey(ctx context.Context, id auth.ModalityID) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	_, err := db.conn.ExecContext(ctx, `UPDATE api_keys SET state = 0 WHERE id = ?`, int64(id))
	observe("update", "api_keys", start, err)
	if err != nil {
		return fmt.Errorf("failed to disable api key: %w", err)
	}
	return nil
}
