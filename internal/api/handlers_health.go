// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/civicmap/internal/middleware"
	"github.com/tomtom215/civicmap/internal/models"
)

const readinessTimeout = 2 * time.Second

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, models.HealthStatus{
		Status:  "alive",
		Version: h.version,
		Uptime:  time.Since(h.startTime).Round(time.Second).String(),
	}, "")
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 OK only when the database answers a ping, 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	dbOK := false
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		dbOK = h.db.Ping(ctx) == nil
		cancel()
	}

	status := models.HealthStatus{
		Status:   "ready",
		Database: dbOK,
		Version:  h.version,
		Uptime:   time.Since(h.startTime).Round(time.Second).String(),
	}
	if !dbOK {
		status.Status = "not_ready"
		respondJSON(w, r, http.StatusServiceUnavailable, &models.APIResponse{
			Status:  models.StatusError,
			Data:    status,
			Message: "Database is not reachable",
		})
		return
	}
	respondSuccess(w, r, status, "")
}

// HealthStats returns per-endpoint latency statistics.
func (h *Handler) HealthStats(w http.ResponseWriter, r *http.Request) {
	stats := []middleware.EndpointStats{}
	if h.perf != nil {
		stats = h.perf.GetStats()
	}
	respondSuccess(w, r, stats, "")
}
