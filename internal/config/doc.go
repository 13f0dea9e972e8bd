// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

/*
Package config provides centralized configuration management for Civicmap.

Configuration is layered with Koanf v2: struct defaults, then an optional YAML
file (CONFIG_PATH, config.yaml, /etc/civicmap/config.yaml), then environment
variables. Validate runs after unmarshalling and rejects unsafe combinations
before any component starts.

# Environment Variables

Server:
  - HTTP_HOST: Bind address (default: 0.0.0.0)
  - HTTP_PORT: Listen port (default: 8080)
  - HTTP_TIMEOUT: Read/write timeout (default: 30s)
  - ENVIRONMENT: development or production (default: development)

Database:
  - DUCKDB_PATH: Database file path (default: /data/civicmap.duckdb)
  - DUCKDB_MAX_MEMORY: Memory limit (default: 1GB)
  - DUCKDB_THREADS: Thread count (default: 0 = NumCPU)
  - SEED_DEMO_DATA: Insert demo rows on startup (default: false)

Ledger:
  - LEDGER_BACKEND: duckdb, badger, memory (default: duckdb)
  - LEDGER_BADGER_PATH: Badger directory (default: /data/ledger)

Security:
  - TOKEN_FRESHNESS_WINDOW: Max token age (default: 600s)
  - MIN_SECRET_LENGTH: Minimum modality secret length (default: 16)
  - KEY_CACHE_TTL: Resolved key cache TTL, 0 disables (default: 5m)
  - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW / DISABLE_RATE_LIMIT
  - CORS_ORIGINS: Comma-separated origins (default: *)
  - AUTH_FAILURE_STATUS: 200, 401 or 403 (default: 200)
  - DIRECTORY_BREAKER_THRESHOLD / _TIMEOUT / _INTERVAL / _MAX_REQUESTS

Comments:
  - COMMENTS_ENABLED (default: true)
  - COMMENTS_DIRECT_PUBLISHING (default: false)

Events:
  - EVENTS_TRANSPORT: channel or nats (default: channel)
  - NATS_URL, NATS_EMBEDDED, NATS_STORE_DIR
  - EVENTS_TOPIC (default: auth.events)
  - EVENTS_RETAIN (default: 200)

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Static modality keys can only be provided through the YAML file:

	security:
	  modalities:
	    - id: 1
	      name: mobile
	      secret: "0123456789abcdef0123456789abcdef"
*/
package config
