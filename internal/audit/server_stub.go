// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

//go:build !nats

package audit

import "context"

// EmbeddedServer is a stub when NATS dependencies are not available.
// Build with -tags=nats to enable the embedded server.
type EmbeddedServer struct{}

// NewEmbeddedServer returns ErrNATSUnavailable.
func NewEmbeddedServer(EmbeddedServerConfig) (*EmbeddedServer, error) {
	return nil, ErrNATSUnavailable
}

// ClientURL returns an empty URL for the stub.
func (s *EmbeddedServer) ClientURL() string { return "" }

// Shutdown is a no-op stub.
func (s *EmbeddedServer) Shutdown(context.Context) error { return nil }

// IsRunning always returns false for the stub.
func (s *EmbeddedServer) IsRunning() bool { return false }
