// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

/*
Package middleware provides HTTP instrumentation middleware.

Key Components:

  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern
  - PerformanceMonitor: sliding window of request latencies with percentile
    statistics and slow request logging

Both are plain func(http.Handler) http.Handler and mount with chi's Use:

	r := chi.NewRouter()
	r.Use(middleware.PrometheusMetrics)
	r.Use(perfMon.Middleware)

Request ids, CORS, rate limiting and security headers live in the api
package next to the router.
*/
package middleware
