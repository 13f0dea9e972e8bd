// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package models

import (
	"errors"
	"time"
)

// Issue states. Only published issues are listed.
const (
	IssueStateUnpublished = 0
	IssueStatePublished   = 1
)

// Issue is a geo-tagged report filed by a user.
type Issue struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Address     string    `json:"address"`
	State       int       `json:"state"`
	Moderation  bool      `json:"moderation"`
	CreatedBy   int64     `json:"created_by"`
	Language    string    `json:"language"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`

	// MyIssue is set per caller when the issue is returned.
	MyIssue bool `json:"myIssue"`
}

// VisibleTo reports whether userID may see the issue: it must be published,
// and an issue under moderation is visible only to its author.
func (i *Issue) VisibleTo(userID int64) bool {
	if i.State != IssueStatePublished {
		return false
	}
	return !i.Moderation || i.CreatedBy == userID
}

// BoundingBox limits an issue query to a rectangle.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// ErrInvalidBoundingBox is returned by BoundingBox.Validate.
var ErrInvalidBoundingBox = errors.New("bounding box minimum exceeds maximum")

// Validate checks the box is not inverted. Coordinate ranges are checked by
// request validation.
func (b *BoundingBox) Validate() error {
	if b.MinLat > b.MaxLat || b.MinLng > b.MaxLng {
		return ErrInvalidBoundingBox
	}
	return nil
}

// Contains reports whether a point lies inside the box, edges included.
func (b *BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// IssueFilter selects issues.
type IssueFilter struct {
	// Box is nil for an unbounded query.
	Box *BoundingBox

	// Limit caps the result; 0 means no limit.
	Limit int
}

// IssueInput carries the writable fields of an issue.
type IssueInput struct {
	Title       string
	Description string
	Address     string
	Latitude    float64
	Longitude   float64
	Language    string
}

// IssuePatch carries the fields to change on an existing issue. Nil fields are
// left untouched.
type IssuePatch struct {
	Title       *string
	Description *string
	Address     *string
	Latitude    *float64
	Longitude   *float64
}

// IsEmpty reports whether the patch changes nothing.
func (p *IssuePatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Address == nil && p.Latitude == nil && p.Longitude == nil
}
