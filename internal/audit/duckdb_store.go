// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/civicmap/internal/logging"
)

// DuckDBStore persists events in the auth_events table.
type DuckDBStore struct {
	db *sql.DB
}

// NewDuckDBStore creates a store over db. Call CreateTable before use.
func NewDuckDBStore(db *sql.DB) *DuckDBStore {
	return &DuckDBStore{db: db}
}

// CreateTable creates the auth_events table and its indexes if missing.
func (s *DuckDBStore) CreateTable(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS auth_events (
			id TEXT PRIMARY KEY,
			timestamp TIMESTAMP NOT NULL,
			type TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			stage TEXT NOT NULL DEFAULT '',
			modality_id BIGINT NOT NULL DEFAULT 0,
			user_id BIGINT NOT NULL DEFAULT 0,
			username TEXT NOT NULL DEFAULT '',
			method TEXT NOT NULL DEFAULT '',
			path TEXT NOT NULL DEFAULT '',
			remote_ip TEXT NOT NULL DEFAULT '',
			request_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_auth_events_timestamp ON auth_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_auth_events_type ON auth_events(type)`,
		`CREATE INDEX IF NOT EXISTS idx_auth_events_modality ON auth_events(modality_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	logging.Info().Msg("Auth events table created/verified")
	return nil
}

// Save persists an event. Saving an id twice is a no-op so redelivered
// messages do not fail the recorder.
func (s *DuckDBStore) Save(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO auth_events (
			id, timestamp, type, kind, stage, modality_id, user_id,
			username, method, path, remote_ip, request_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		event.ID, event.Timestamp.UTC(), event.Type, event.Kind, event.Stage,
		event.ModalityID, event.UserID, event.Username, event.Method, event.Path,
		event.RemoteIP, event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("failed to save auth event: %w", err)
	}
	return nil
}

// buildWhere returns the WHERE clause and arguments for filter.
func buildWhere(filter *QueryFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.ModalityID > 0 {
		conditions = append(conditions, "modality_id = ?")
		args = append(args, filter.ModalityID)
	}
	if filter.UserID > 0 {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, filter.Until.UTC())
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Query returns matching events, newest first.
func (s *DuckDBStore) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	where, args := buildWhere(&filter)
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, type, kind, stage, modality_id, user_id,
			username, method, path, remote_ip, request_id
		FROM auth_events`+where+`
		ORDER BY timestamp DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query auth events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Type, &e.Kind, &e.Stage, &e.ModalityID,
			&e.UserID, &e.Username, &e.Method, &e.Path, &e.RemoteIP, &e.RequestID); err != nil {
			return nil, fmt.Errorf("failed to scan auth event: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating auth events: %w", err)
	}
	return events, nil
}

// Count returns the number of matching events. Limit is ignored.
func (s *DuckDBStore) Count(ctx context.Context, filter QueryFilter) (int64, error) {
	where, args := buildWhere(&filter)

	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM auth_events"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count auth events: %w", err)
	}
	return count, nil
}

// Delete removes events older than olderThan.
func (s *DuckDBStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM auth_events WHERE timestamp < ?`, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete old auth events: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get deleted count: %w", err)
	}
	if count > 0 {
		logging.Info().Int64("deleted", count).Time("older_than", olderThan).Msg("Deleted old auth events")
	}
	return count, nil
}

// countByColumn groups events by a fixed column name.
func (s *DuckDBStore) countByColumn(ctx context.Context, column string) (map[string]int64, error) {
	result := make(map[string]int64)
	// column is one of the literals passed by GetStats
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("SELECT %s, COUNT(*) FROM auth_events GROUP BY %s", column, column))
	if err != nil {
		return nil, fmt.Errorf("failed to get %s counts: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("failed to scan %s count: %w", column, err)
		}
		result[key] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s counts: %w", column, err)
	}
	return result, nil
}

// GetStats summarizes the stored events.
func (s *DuckDBStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM auth_events").Scan(&stats.TotalEvents); err != nil {
		return nil, fmt.Errorf("failed to get total count: %w", err)
	}

	var err error
	if stats.EventsByType, err = s.countByColumn(ctx, "type"); err != nil {
		return nil, err
	}
	if stats.EventsByKind, err = s.countByColumn(ctx, "kind"); err != nil {
		return nil, err
	}
	delete(stats.EventsByKind, "")

	var oldest, newest sql.NullTime
	if err := s.db.QueryRowContext(ctx, "SELECT MIN(timestamp), MAX(timestamp) FROM auth_events").Scan(&oldest, &newest); err != nil {
		return nil, fmt.Errorf("failed to get event time range: %w", err)
	}
	if oldest.Valid {
		t := oldest.Time.UTC()
		stats.OldestEvent = &t
	}
	if newest.Valid {
		t := newest.Time.UTC()
		stats.NewestEvent = &t
	}
	return stats, nil
}
