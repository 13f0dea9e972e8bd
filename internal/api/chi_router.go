// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/civicmap/internal/middleware"
)

// Router wires handlers, authentication and middleware into a chi mux.
type Router struct {
	handler       *Handler
	auth          *RequestAuthenticator
	chiMiddleware *ChiMiddleware
	perf          *middleware.PerformanceMonitor

	// authFailureStatus is the status of rejected tokens outside the
	// comment endpoints, which always use 403.
	authFailureStatus int
}

// NewRouter creates a Router. A nil chiMiddleware uses the defaults and a
// zero authFailureStatus means 200.
func NewRouter(handler *Handler, authenticator *RequestAuthenticator, chiMiddleware *ChiMiddleware,
	perf *middleware.PerformanceMonitor, authFailureStatus int) *Router {
	if chiMiddleware == nil {
		chiMiddleware = NewChiMiddleware(nil)
	}
	if authFailureStatus == 0 {
		authFailureStatus = http.StatusOK
	}
	return &Router{
		handler:           handler,
		auth:              authenticator,
		chiMiddleware:     chiMiddleware,
		perf:              perf,
		authFailureStatus: authFailureStatus,
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // CORS must be global to handle OPTIONS preflight

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "Endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, msgMethodUnsupported, nil)
	})

	// ========================
	// Health Endpoints
	// ========================
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimitHealth())
		r.Use(APISecurityHeaders())
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/stats", router.handler.HealthStats)
	})

	// ========================
	// Token-Authenticated API
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(APISecurityHeaders())
		r.Use(middleware.PrometheusMetrics)
		if router.perf != nil {
			r.Use(router.perf.Middleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(router.auth.Require(router.authFailureStatus))
				r.Get("/issues", router.handler.Issues)
				r.HandleFunc("/issue", router.handler.Issue)
			})

			r.Group(func(r chi.Router) {
				r.Use(router.auth.Require(http.StatusForbidden))
				r.Get("/comments", router.handler.Comments)
				r.Post("/comments", router.handler.PostComment)
			})
		})
	})

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	return r
}
