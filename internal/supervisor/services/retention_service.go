// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package services

import (
	"context"
	"time"

	"github.com/tomtom215/civicmap/internal/logging"
)

// Pruner deletes records older than a cutoff. *audit.DuckDBStore implements it.
type Pruner interface {
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
}

// RetentionService periodically deletes stored auth events older than the
// retention period. A failed pass is logged and retried on the next tick.
type RetentionService struct {
	pruner    Pruner
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

// NewRetentionService creates the service. interval defaults to one hour.
func NewRetentionService(pruner Pruner, retention, interval time.Duration) *RetentionService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RetentionService{
		pruner:    pruner,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// Serve implements suture.Service. The first pass runs immediately.
func (s *RetentionService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.prune(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *RetentionService) prune(ctx context.Context) {
	cutoff := s.now().Add(-s.retention)
	deleted, err := s.pruner.Delete(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			logging.Warn().Err(err).Time("cutoff", cutoff).Msg("Auth event retention pass failed")
		}
		return
	}
	logging.Debug().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("Auth event retention pass")
}

func (s *RetentionService) String() string {
	return "audit-retention"
}
