// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Token validation metrics.

var (
	// TokenValidationsTotal counts validator outcomes.
	// Labels:
	//   - outcome: "accepted", "rejected"
	//   - kind: Kind.String(), "none" on acceptance
	//   - stage: Stage.String() of the terminal stage
	TokenValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_validations_total",
			Help: "Total number of token validations by outcome",
		},
		[]string{"outcome", "kind", "stage"},
	)

	// TokenValidationDuration measures end-to-end validation latency.
	// bcrypt dominates accepted requests.
	TokenValidationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "token_validation_duration_seconds",
			Help:    "Duration of token validation in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"outcome"},
	)

	// TokenReplaysTotal counts replayed tokens by detecting stage.
	// "recorded" means the pre-check passed and the insert lost a race.
	TokenReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_replays_total",
			Help: "Total number of replayed tokens by detecting stage",
		},
		[]string{"stage"},
	)

	// LedgerOperationsTotal counts nonce ledger operations.
	// Labels:
	//   - backend: "memory", "badger", "duckdb"
	//   - operation: "exists", "insert"
	//   - outcome: "success", "duplicate", "failure"
	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nonce_ledger_operations_total",
			Help: "Total number of nonce ledger operations",
		},
		[]string{"backend", "operation", "outcome"},
	)

	// KeyStoreLookupsTotal counts cached key store lookups ("hit", "miss", "error").
	KeyStoreLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "key_store_lookups_total",
			Help: "Total number of modality key lookups through the cache",
		},
		[]string{"outcome"},
	)
)

// recordValidation records the outcome of one Validate call.
func recordValidation(err error, duration time.Duration) {
	if err == nil {
		TokenValidationsTotal.WithLabelValues("accepted", "none", StageRecorded.String()).Inc()
		TokenValidationDuration.WithLabelValues("accepted").Observe(duration.Seconds())
		return
	}
	kind, _ := KindOf(err)
	stage := StageOf(err)
	TokenValidationsTotal.WithLabelValues("rejected", kind.String(), stage.String()).Inc()
	TokenValidationDuration.WithLabelValues("rejected").Observe(duration.Seconds())
	if kind == ReplayedToken {
		TokenReplaysTotal.WithLabelValues(stage.String()).Inc()
	}
}
