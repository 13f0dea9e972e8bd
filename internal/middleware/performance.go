// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package middleware

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/tomtom215/civicmap/internal/logging"
)

// RequestMetrics is one sampled request.
type RequestMetrics struct {
	Path       string    `json:"path"`
	Method     string    `json:"method"`
	DurationMS int64     `json:"duration_ms"`
	StatusCode int       `json:"status_code"`
	Timestamp  time.Time `json:"timestamp"`
}

// EndpointStats aggregates the sampled requests of one "METHOD pattern" key.
// Durations are milliseconds.
type EndpointStats struct {
	Path         string  `json:"path"`
	RequestCount int64   `json:"request_count"`
	ErrorCount   int64   `json:"error_count"`
	AvgDuration  float64 `json:"avg_duration_ms"`
	P50Duration  int64   `json:"p50_duration_ms"`
	P95Duration  int64   `json:"p95_duration_ms"`
	P99Duration  int64   `json:"p99_duration_ms"`
	MinDuration  int64   `json:"min_duration_ms"`
	MaxDuration  int64   `json:"max_duration_ms"`
}

// DefaultSlowThreshold is the request duration logged as slow.
const DefaultSlowThreshold = time.Second

// PerformanceMonitor keeps a fixed-size ring of recent request samples and
// serves per-endpoint latency summaries for /health/stats.
type PerformanceMonitor struct {
	mu         sync.RWMutex
	ring       []RequestMetrics
	next       int
	full       bool
	maxMetrics int
	slow       time.Duration
}

// NewPerformanceMonitor creates a monitor keeping the last maxMetrics
// requests. Requests slower than slow are logged; zero means
// DefaultSlowThreshold.
func NewPerformanceMonitor(maxMetrics int, slow time.Duration) *PerformanceMonitor {
	if maxMetrics <= 0 {
		maxMetrics = 1000
	}
	if slow <= 0 {
		slow = DefaultSlowThreshold
	}
	return &PerformanceMonitor{
		ring:       make([]RequestMetrics, maxMetrics),
		maxMetrics: maxMetrics,
		slow:       slow,
	}
}

// RecordRequest adds a sample, overwriting the oldest once the ring is full.
func (pm *PerformanceMonitor) RecordRequest(metric *RequestMetrics) {
	pm.mu.Lock()
	pm.ring[pm.next] = *metric
	pm.next = (pm.next + 1) % pm.maxMetrics
	if pm.next == 0 {
		pm.full = true
	}
	pm.mu.Unlock()
}

// snapshot returns the samples oldest first. Callers hold mu.
func (pm *PerformanceMonitor) snapshot() []RequestMetrics {
	if !pm.full {
		return slices.Clone(pm.ring[:pm.next])
	}
	out := make([]RequestMetrics, 0, pm.maxMetrics)
	out = append(out, pm.ring[pm.next:]...)
	return append(out, pm.ring[:pm.next]...)
}

// GetStats returns per-endpoint summaries, busiest first.
func (pm *PerformanceMonitor) GetStats() []EndpointStats {
	pm.mu.RLock()
	samples := pm.snapshot()
	pm.mu.RUnlock()

	type bucket struct {
		durations []int64
		errors    int64
	}
	buckets := make(map[string]*bucket)
	for _, m := range samples {
		key := m.Method + " " + m.Path
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.durations = append(b.durations, m.DurationMS)
		if m.StatusCode >= http.StatusBadRequest {
			b.errors++
		}
	}

	stats := make([]EndpointStats, 0, len(buckets))
	for endpoint, b := range buckets {
		slices.Sort(b.durations)
		var sum int64
		for _, d := range b.durations {
			sum += d
		}
		n := len(b.durations)
		stats = append(stats, EndpointStats{
			Path:         endpoint,
			RequestCount: int64(n),
			ErrorCount:   b.errors,
			AvgDuration:  float64(sum) / float64(n),
			P50Duration:  percentile(b.durations, 0.50),
			P95Duration:  percentile(b.durations, 0.95),
			P99Duration:  percentile(b.durations, 0.99),
			MinDuration:  b.durations[0],
			MaxDuration:  b.durations[n-1],
		})
	}

	slices.SortFunc(stats, func(a, b EndpointStats) int {
		if a.RequestCount != b.RequestCount {
			return int(b.RequestCount - a.RequestCount)
		}
		if a.Path < b.Path {
			return -1
		}
		return 1
	})
	return stats
}

// GetRecentMetrics returns up to n of the newest samples, oldest first.
func (pm *PerformanceMonitor) GetRecentMetrics(n int) []RequestMetrics {
	pm.mu.RLock()
	samples := pm.snapshot()
	pm.mu.RUnlock()

	if n > len(samples) {
		n = len(samples)
	}
	return samples[len(samples)-n:]
}

// Middleware samples every request and logs the slow ones.
func (pm *PerformanceMonitor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		elapsed := time.Since(start)
		path := routePattern(r)
		pm.RecordRequest(&RequestMetrics{
			Path:       path,
			Method:     r.Method,
			DurationMS: elapsed.Milliseconds(),
			StatusCode: wrapper.statusCode,
			Timestamp:  start,
		})

		if elapsed > pm.slow {
			logging.Ctx(r.Context()).Warn().
				Str("method", r.Method).
				Str("path", path).
				Int64("duration_ms", elapsed.Milliseconds()).
				Msg("Slow request detected")
		}
	})
}

// percentile reads the nearest-rank value from a sorted slice.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	return sorted[int(float64(len(sorted)-1)*p)]
}
