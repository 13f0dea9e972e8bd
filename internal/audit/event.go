// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package audit

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Event types.
const (
	TypeAuthSuccess = "auth.success"
	TypeAuthFailure = "auth.failure"
)

// ErrInvalidEvent is returned when a decoded event has no id or an unknown type.
var ErrInvalidEvent = errors.New("invalid audit event")

// Event is one authentication outcome.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Kind       string    `json:"kind,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	ModalityID int64     `json:"modality_id,omitempty"`
	UserID     int64     `json:"user_id,omitempty"`
	Username   string    `json:"username,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	RemoteIP   string    `json:"remote_ip"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewEvent returns an event of the given type with a fresh id and the
// current time.
func NewEvent(eventType string) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// Succeeded reports whether the event records an accepted token.
func (e *Event) Succeeded() bool {
	return e.Type == TypeAuthSuccess
}

// Marshal encodes the event as JSON.
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent decodes and checks an event.
func UnmarshalEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode audit event: %w", err)
	}
	if e.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Type != TypeAuthSuccess && e.Type != TypeAuthFailure {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return &e, nil
}
