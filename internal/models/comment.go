// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package models

import "time"

// CommentStatePublished is the state of a listed comment.
const CommentStatePublished = 1

// Comment is a reply on an issue, optionally nested under another comment.
type Comment struct {
	ID          int64     `json:"id"`
	IssueID     int64     `json:"issueid"`
	ParentID    int64     `json:"parentid,omitempty"`
	CreatedBy   int64     `json:"created_by"`
	Fullname    string    `json:"fullname"`
	Description string    `json:"description"`
	Moderation  bool      `json:"moderation"`
	IsAdmin     bool      `json:"created_by_admin"`
	State       int       `json:"state"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`

	// CreatedByCurrentUser is set per caller when the comment is returned.
	CreatedByCurrentUser bool `json:"created_by_current_user"`
}

// CommentInput carries a new comment.
type CommentInput struct {
	IssueID     int64
	ParentID    int64
	CreatedBy   int64
	Fullname    string
	Description string
	Moderation  bool
}
