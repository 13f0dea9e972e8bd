// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

/*
Package metrics provides Prometheus metrics shared across Civicmap packages.

Metrics are registered with promauto on the default registry and exposed at
/metrics by the API router:

	curl http://localhost:8080/metrics

# Available Metrics

HTTP:
  - api_requests_total{method, endpoint, status_code}
  - api_request_duration_seconds{method, endpoint}
  - api_active_requests
  - api_rate_limit_hits_total{endpoint}

Database:
  - duckdb_query_duration_seconds{operation, table}
  - duckdb_query_errors_total{operation, table}

Circuit breakers (user directory, NATS publisher):
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name, result}
  - circuit_breaker_state_transitions_total{name, from_state, to_state}

Auth event stream:
  - auth_events_published_total{transport, outcome}
  - auth_events_recorded_total{type}

Token validation metrics (auth_token_validations_total and friends) are
defined in internal/auth.

# Example Alert

	- alert: TokenReplaySpike
	  expr: rate(auth_token_replays_total[5m]) > 1
	  labels:
	    severity: warning
*/
package metrics
