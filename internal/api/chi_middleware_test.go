// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package api

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/civicmap/internal/config"
	"github.com/tomtom215/civicmap/internal/logging"
	"github.com/tomtom215/civicmap/internal/metrics"
)

// =====================================================
// ChiMiddleware Configuration Tests
// =====================================================

func TestNewChiMiddleware_DefaultConfig(t *testing.T) {
	m := NewChiMiddleware(nil)

	if m == nil {
		t.Fatal("NewChiMiddleware returned nil")
	}
	// Default should be empty (requires explicit configuration)
	if len(m.config.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want []", m.config.CORSAllowedOrigins)
	}
	if m.config.CORSMaxAge != 86400 {
		t.Errorf("CORSMaxAge = %d, want 86400", m.config.CORSMaxAge)
	}
	if m.config.RateLimitRequests != 100 || m.config.RateLimitWindow != time.Minute {
		t.Errorf("rate limit = %d/%v, want 100/1m", m.config.RateLimitRequests, m.config.RateLimitWindow)
	}
}

func TestChiMiddlewareConfigFromSecurity(t *testing.T) {
	cfg := ChiMiddlewareConfigFromSecurity(&config.SecurityConfig{
		CORSOrigins:       []string{"https://map.example.org", "https://app.example.org"},
		RateLimitReqs:     200,
		RateLimitWindow:   2 * time.Minute,
		RateLimitDisabled: true,
	})

	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Errorf("CORSAllowedOrigins length = %d, want 2", len(cfg.CORSAllowedOrigins))
	}
	if cfg.RateLimitRequests != 200 {
		t.Errorf("RateLimitRequests = %d, want 200", cfg.RateLimitRequests)
	}
	if cfg.RateLimitWindow != 2*time.Minute {
		t.Errorf("RateLimitWindow = %v, want 2m", cfg.RateLimitWindow)
	}
	if !cfg.RateLimitDisabled {
		t.Error("RateLimitDisabled should be true")
	}
	// Methods are not configurable; PATCH must always be allowed.
	found := false
	for _, m := range cfg.CORSAllowedMethods {
		found = found || m == http.MethodPatch
	}
	if !found {
		t.Errorf("CORSAllowedMethods = %v, missing PATCH", cfg.CORSAllowedMethods)
	}
}

// =====================================================
// CORS Middleware Tests
// =====================================================

func TestChiMiddleware_CORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantOrigin string
	}{
		{"wildcard", []string{"*"}, http.MethodGet, "https://example.com", "*"},
		{"specific allowed", []string{"https://allowed.com"}, http.MethodGet, "https://allowed.com", "https://allowed.com"},
		{"specific disallowed", []string{"https://allowed.com"}, http.MethodGet, "https://evil.com", ""},
		{"no origin header", []string{"https://allowed.com"}, http.MethodGet, "", ""},
		{"preflight allowed", []string{"https://allowed.com"}, http.MethodOptions, "https://allowed.com", "https://allowed.com"},
		{"preflight disallowed", []string{"https://allowed.com"}, http.MethodOptions, "https://evil.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultChiMiddlewareConfig()
			cfg.CORSAllowedOrigins = tt.origins
			m := NewChiMiddleware(cfg)

			handler := m.CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/v1/issues", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if tt.method == http.MethodOptions && tt.wantOrigin != "" {
				if got := w.Header().Get("Access-Control-Allow-Methods"); got != http.MethodPatch {
					t.Errorf("Access-Control-Allow-Methods = %q, want PATCH", got)
				}
			}
		})
	}
}

// =====================================================
// Rate Limit Middleware Tests
// =====================================================

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestChiMiddleware_RateLimit_Disabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitDisabled: true,
		RateLimitRequests: 3,
		RateLimitWindow:   time.Second,
	})
	handler := m.RateLimit()(okHandler())

	// Should allow unlimited requests when disabled
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("Request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}
}

func TestChiMiddleware_RateLimit_Enabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 3,
		RateLimitWindow:   time.Minute, // Use a longer window for test stability
	})
	handler := m.RateLimit()(okHandler())

	before := testutil.ToFloat64(metrics.APIRateLimitHits.WithLabelValues("/limited"))

	successCount := 0
	var last *httptest.ResponseRecorder
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/limited", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		switch w.Code {
		case http.StatusOK:
			successCount++
		case http.StatusTooManyRequests:
			last = w
		default:
			t.Errorf("Request %d: unexpected status %d", i, w.Code)
		}
	}

	if successCount != 3 {
		t.Errorf("successCount = %d, want 3", successCount)
	}
	if last == nil {
		t.Fatal("no request was rate limited")
	}
	if body := last.Body.String(); !strings.Contains(body, `"status":"error"`) || !strings.Contains(body, "Too many requests") {
		t.Errorf("429 body is not the error envelope: %s", body)
	}
	if got := testutil.ToFloat64(metrics.APIRateLimitHits.WithLabelValues("/limited")) - before; got != 2 {
		t.Errorf("rate limit hits = %v, want 2", got)
	}
}

func TestChiMiddleware_RateLimit_DifferentIPs(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})
	handler := m.RateLimit()(okHandler())

	// Different IPs should have separate rate limits
	ips := []string{"192.168.1.1:12345", "192.168.1.2:12345", "192.168.1.3:12345"}

	for _, ip := range ips {
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = ip
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("IP %s request %d: status = %d, want %d", ip, i, w.Code, http.StatusOK)
			}
		}
	}
}

func TestChiMiddleware_RateLimitHealth_IsPermissive(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
	})
	handler := m.RateLimitHealth()(okHandler())

	for i := 0; i < 20; i++ {
		req := httptest.NewRequest("GET", "/api/v1/health/live", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("health request %d limited with status %d", i, w.Code)
		}
	}
}

// =====================================================
// Request ID and Security Header Tests
// =====================================================

func TestRequestIDWithLogging(t *testing.T) {
	var seen string
	handler := RequestIDWithLogging()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		if seen == "" {
			t.Fatal("no request id in context")
		}
		if got := w.Header().Get("X-Request-ID"); got != seen {
			t.Errorf("X-Request-ID = %q, want %q", got, seen)
		}
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("X-Request-ID", "client-supplied-id")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if seen != "client-supplied-id" {
			t.Errorf("context request id = %q", seen)
		}
		if got := w.Header().Get("X-Request-ID"); got != "client-supplied-id" {
			t.Errorf("X-Request-ID = %q", got)
		}
	})
}

func TestAPISecurityHeaders(t *testing.T) {
	handler := APISecurityHeaders()(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for header, value := range want {
		if got := w.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS set on plain HTTP: %q", got)
	}

	for name, req := range map[string]*http.Request{
		"tls":   func() *http.Request { r := httptest.NewRequest("GET", "/", nil); r.TLS = &tls.ConnectionState{}; return r }(),
		"proxy": func() *http.Request { r := httptest.NewRequest("GET", "/", nil); r.Header.Set("X-Forwarded-Proto", "https"); return r }(),
	} {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Header().Get("Strict-Transport-Security") == "" {
			t.Errorf("%s: HSTS missing", name)
		}
	}
}
