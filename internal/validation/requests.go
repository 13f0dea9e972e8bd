// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package validation

import "github.com/go-playground/validator/v10"

// MaxIssueLimit caps the issues listing.
const MaxIssueLimit = 1000

// AuthParams are the token parameters every API request carries.
type AuthParams struct {
	Token      string `form:"token" validate:"required"`
	ModalityID string `form:"m_id" validate:"required,numeric"`
	Language   string `form:"l" validate:"required,langcode"`
}

// IssuesQuery filters the issues listing. The bounding box is all four
// corners or none; see validateIssuesQuery.
type IssuesQuery struct {
	MinLat *float64 `form:"minLat" validate:"omitempty,latitude"`
	MaxLat *float64 `form:"maxLat" validate:"omitempty,latitude"`
	MinLng *float64 `form:"minLng" validate:"omitempty,longitude"`
	MaxLng *float64 `form:"maxLng" validate:"omitempty,longitude"`
	Limit  int      `form:"limit" validate:"min=0,max=1000"`
}

// HasBox reports whether a bounding box was supplied.
func (q *IssuesQuery) HasBox() bool {
	return q.MinLat != nil && q.MaxLat != nil && q.MinLng != nil && q.MaxLng != nil
}

// validateIssuesQuery rejects a partial or inverted bounding box.
func validateIssuesQuery(sl validator.StructLevel) {
	q, ok := sl.Current().Interface().(IssuesQuery)
	if !ok {
		return
	}
	corners := 0
	for _, c := range []*float64{q.MinLat, q.MaxLat, q.MinLng, q.MaxLng} {
		if c != nil {
			corners++
		}
	}
	switch {
	case corners == 0:
	case corners < 4:
		sl.ReportError(q.MinLat, "bbox", "MinLat", "bbox", "")
	case *q.MinLat > *q.MaxLat || *q.MinLng > *q.MaxLng:
		sl.ReportError(q.MinLat, "bbox", "MinLat", "bboxorder", "")
	}
}

// IssueCreate is the body of a new issue.
type IssueCreate struct {
	Title       string   `form:"title" validate:"required,max=255"`
	Description string   `form:"description" validate:"max=10000"`
	Address     string   `form:"address" validate:"max=512"`
	Latitude    *float64 `form:"lat" validate:"required,latitude"`
	Longitude   *float64 `form:"lng" validate:"required,longitude"`
}

// IssueUpdate is the body of an issue change. Absent fields are unchanged.
type IssueUpdate struct {
	Title       *string  `form:"title" validate:"omitnil,min=1,max=255"`
	Description *string  `form:"description" validate:"omitnil,max=10000"`
	Address     *string  `form:"address" validate:"omitnil,max=512"`
	Latitude    *float64 `form:"lat" validate:"omitnil,latitude"`
	Longitude   *float64 `form:"lng" validate:"omitnil,longitude"`
}

// CommentCreate is the body of a new comment.
type CommentCreate struct {
	IssueID     int64  `form:"issueid" validate:"required,gt=0"`
	ParentID    int64  `form:"parentid" validate:"min=0"`
	Description string `form:"description" validate:"required,max=5000"`
}
