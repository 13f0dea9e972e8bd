// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package services

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/civicmap/internal/logging"
)

// ErrEmbeddedServerStopped is returned when the embedded server stops on
// its own while the service is running.
var ErrEmbeddedServerStopped = errors.New("embedded NATS server stopped")

// EmbeddedServer is the lifecycle of *audit.EmbeddedServer.
type EmbeddedServer interface {
	ClientURL() string
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// EmbeddedNATSService keeps an already started embedded NATS server alive
// under suture and shuts it down with the tree.
//
// The server is started before the tree so that publishers can connect
// during wiring. The service only watches it; a restart by suture does not
// bring a dead server back.
type EmbeddedNATSService struct {
	server          EmbeddedServer
	shutdownTimeout time.Duration
	checkInterval   time.Duration
}

// NewEmbeddedNATSService creates the service.
func NewEmbeddedNATSService(server EmbeddedServer, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &EmbeddedNATSService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		checkInterval:   5 * time.Second,
	}
}

// Serve implements suture.Service.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	logging.Info().Str("url", s.server.ClientURL()).Msg("Embedded NATS server supervised")

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				logging.Warn().Err(err).Msg("Embedded NATS server shutdown incomplete")
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.server.IsRunning() {
				return ErrEmbeddedServerStopped
			}
		}
	}
}

func (s *EmbeddedNATSService) String() string {
	return "embedded-nats"
}
