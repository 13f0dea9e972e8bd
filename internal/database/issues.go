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
	"strings"
	"time"

	"github.com/tomtom215/civicmap/internal/models"
)

const issueColumns = `id, title, description, latitude, longitude, address, state, moderation, created_by, language, created, updated`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(s rowScanner) (*models.Issue, error) {
	var i models.Issue
	if err := s.Scan(&i.ID, &i.Title, &i.Description, &i.Latitude, &i.Longitude, &i.Address,
		&i.State, &i.Moderation, &i.CreatedBy, &i.Language, &i.Created, &i.Updated); err != nil {
		return nil, err
	}
	return &i, nil
}

// ListIssues returns the issues visible to userID, newest first. An issue
// under moderation is listed only for its author.
func (db *DB) ListIssues(ctx context.Context, filter models.IssueFilter, userID int64) ([]models.Issue, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var sb strings.Builder
	sb.WriteString(`SELECT ` + issueColumns + ` FROM issues WHERE state = ? AND (moderation = false OR created_by = ?)`)
	args := []any{models.IssueStatePublished, userID}

	if filter.Box != nil {
		if err := filter.Box.Validate(); err != nil {
			return nil, err
		}
		sb.WriteString(` AND latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`)
		args = append(args, filter.Box.MinLat, filter.Box.MaxLat, filter.Box.MinLng, filter.Box.MaxLng)
	}
	sb.WriteString(` ORDER BY created DESC, id DESC`)
	if filter.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, filter.Limit)
	}

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		observe("select", "issues", start, err)
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer closeWithLog(rows, "rows")

	issues := make([]models.Issue, 0)
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			observe("select", "issues", start, err)
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}
		issue.MyIssue = issue.CreatedBy == userID
		issues = append(issues, *issue)
	}
	err = rows.Err()
	observe("select", "issues", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate issues: %w", err)
	}
	return issues, nil
}

// GetIssue returns the issue with the given id regardless of its state.
// Callers decide visibility. MyIssue is set relative to userID.
func (db *DB) GetIssue(ctx context.Context, id, userID int64) (*models.Issue, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	issue, err := scanIssue(db.conn.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		observe("select", "issues", start, nil)
		return nil, ErrIssueNotFound
	}
	observe("select", "issues", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get issue %d: %w", id, err)
	}
	issue.MyIssue = issue.CreatedBy == userID
	return issue, nil
}

// CreateIssue inserts a published issue owned by userID.
func (db *DB) CreateIssue(ctx context.Context, userID int64, in *models.IssueInput) (*models.Issue, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	lang := in.Language
	if lang == "" {
		lang = "*"
	}
	now := time.Now().UTC()

	start := time.Now()
	issue, err := scanIssue(db.conn.QueryRowContext(ctx,
		`INSERT INTO issues (title, description, latitude, longitude, address, state, moderation, created_by, language, created, updated)
		 VALUES (?, ?, ?, ?, ?, ?, false, ?, ?, ?, ?) RETURNING `+issueColumns,
		in.Title, in.Description, in.Latitude, in.Longitude, in.Address,
		models.IssueStatePublished, userID, lang, now, now))
	observe("insert", "issues", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	issue.MyIssue = true
	return issue, nil
}

// UpdateIssue applies patch to an issue owned by userID. It returns
// ErrIssueNotFound or ErrNotIssueOwner without writing.
func (db *DB) UpdateIssue(ctx context.Context, id, userID int64, patch *models.IssuePatch) (*models.Issue, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	current, err := db.GetIssue(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if current.CreatedBy != userID {
		return nil, ErrNotIssueOwner
	}
	if patch.IsEmpty() {
		return current, nil
	}

	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *patch.Description)
	}
	if patch.Address != nil {
		sets = append(sets, "address = ?")
		args = append(args, *patch.Address)
	}
	if patch.Latitude != nil {
		sets = append(sets, "latitude = ?")
		args = append(args, *patch.Latitude)
	}
	if patch.Longitude != nil {
		sets = append(sets, "longitude = ?")
		args = append(args, *patch.Longitude)
	}
	sets = append(sets, "updated = ?")
	args = append(args, time.Now().UTC(), id, userID)

	start := time.Now()
	// Column names come from the fixed list above
	issue, err := scanIssue(db.conn.QueryRowContext(ctx,
		`UPDATE issues SET `+strings.Join(sets, ", ")+` WHERE id = ? AND created_by = ? RETURNING `+issueColumns,
		args...))
	if errors.Is(err, sql.ErrNoRows) {
		observe("update", "issues", start, nil)
		return nil, ErrIssueNotFound
	}
	observe("update", "issues", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to update issue %d: %w", id, err)
	}
	issue.MyIssue = true
	return issue, nil
}

// SetIssueModeration puts an issue under moderation or releases it.
func (db *DB) SetIssueModeration(ctx context.Context, id int64, moderation bool) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `UPDATE issues SET moderation = ?, updated = ? WHERE id = ?`,
		moderation, time.Now().UTC(), id)
	observe("update", "issues", start, err)
	if err != nil {
		return fmt.Errorf("failed to update issue %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrIssueNotFound
	}
	return nil
}

// SetIssueState changes an issue's publication state.
func (db *DB) SetIssueState(ctx context.Context, id int64, state int) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, `UPDATE issues SET state = ?, updated = ? WHERE id = ?`,
		state, time.Now().UTC(), id)
	observe("update", "issues", start, err)
	if err != nil {
		return fmt.Errorf("failed to update issue %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrIssueNotFound
	}
	return nil
}
