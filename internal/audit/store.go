// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package audit

import (
	"context"
	"time"
)

// Store persists recorded events beyond the recorder's in-memory window.
type Store interface {
	Save(ctx context.Context, event *Event) error
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)
	Count(ctx context.Context, filter QueryFilter) (int64, error)
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// QueryFilter narrows a Store query. Zero fields match everything.
type QueryFilter struct {
	Type       string
	Kind       string
	ModalityID int64
	UserID     int64
	Since      time.Time
	Until      time.Time
	Limit      int
}

// DefaultQueryLimit caps queries that set no limit.
const DefaultQueryLimit = 100

// Stats summarizes a Store.
type Stats struct {
	TotalEvents  int64            `json:"total_events"`
	EventsByType map[string]int64 `json:"events_by_type"`
	EventsByKind map[string]int64 `json:"events_by_kind"`
	OldestEvent  *time.Time       `json:"oldest_event,omitempty"`
	NewestEvent  *time.Time       `json:"newest_event,omitempty"`
}
