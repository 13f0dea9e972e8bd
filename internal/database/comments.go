// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/civicmap/internal/models"
)

const commentColumns = `id, issueid, parentid, created_by, fullname, description, moderation, is_admin, state, created, updated`

func scanComment(s rowScanner) (*models.Comment, error) {
	var c models.Comment
	if err := s.Scan(&c.ID, &c.IssueID, &c.ParentID, &c.CreatedBy, &c.Fullname, &c.Description,
		&c.Moderation, &c.IsAdmin, &c.State, &c.Created, &c.Updated); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListComments returns the published comments of an issue in posting order.
// CreatedByCurrentUser is set relative to userID.
func (db *DB) ListComments(ctx context.Context, issueID, userID int64) ([]models.Comment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE issueid = ? AND state = ? ORDER BY created ASC, id ASC`,
		issueID, models.CommentStatePublished)
	if err != nil {
		observe("select", "comments", start, err)
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer closeWithLog(rows, "rows")

	comments := make([]models.Comment, 0)
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			observe("select", "comments", start, err)
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		c.CreatedByCurrentUser = c.CreatedBy == userID
		comments = append(comments, *c)
	}
	err = rows.Err()
	observe("select", "comments", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}
	return comments, nil
}

// CreateComment inserts a published comment. The issue must exist.
func (db *DB) CreateComment(ctx context.Context, in *models.CommentInput) (*models.Comment, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var exists bool
	if err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM issues WHERE id = ?)`, in.IssueID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check issue %d: %w", in.IssueID, err)
	}
	if !exists {
		return nil, ErrIssueNotFound
	}

	now := time.Now().UTC()
	start := time.Now()
	c, err := scanComment(db.conn.QueryRowContext(ctx,
		`INSERT INTO comments (issueid, parentid, created_by, fullname, description, moderation, is_admin, state, created, updated)
		 VALUES (?, ?, ?, ?, ?, ?, false, ?, ?, ?) RETURNING `+commentColumns,
		in.IssueID, in.ParentID, in.CreatedBy, in.Fullname, in.Description, in.Moderation,
		models.CommentStatePublished, now, now))
	observe("insert", "comments", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	c.CreatedByCurrentUser = true
	return c, nil
}
