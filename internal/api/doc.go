// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

/*
Package api provides the HTTP surface of Civicmap.

Every endpoint under /api/v1 except the health checks is token
authenticated. Clients send token, m_id and l in the query string or form
body; RequestAuthenticator validates them, publishes an audit event and
stores the principal in the request context.

Endpoints:

	GET       /api/v1/issues           published issues, optionally in a bounding box
	GET       /api/v1/issue?id=        one issue
	POST      /api/v1/issue            create an issue
	PUT|PATCH /api/v1/issue?id=        update the caller's own issue
	GET       /api/v1/comments?issueid= comments of an issue
	POST      /api/v1/comments         post a comment
	GET       /api/v1/health/live      liveness
	GET       /api/v1/health/ready     readiness (database ping)
	GET       /api/v1/health/stats     per-endpoint latency statistics
	GET       /metrics                 Prometheus scrape endpoint

Responses always use the envelope

	{"status": "success"|"error", "data": ..., "message": "...", "request_id": "..."}

Rejected tokens on the issue endpoints use the configured failure status
(200 by default). The comment endpoints answer every failure with 403. Data
and validation errors on the issue endpoints are reported in the envelope
with status 200.

Middleware order: request id, real IP, panic recovery and CORS apply
globally; rate limiting, security headers and metrics wrap the API group.
*/
package api
