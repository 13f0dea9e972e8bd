// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

/*
Package main is the entry point for the Civicmap server.

Civicmap serves a token-authenticated API for reporting geo-tagged issues and
commenting on them. Every request carries a single-use encrypted token; the
server decrypts it with the client's modality key, checks freshness,
credentials and replay, and records the token so it cannot be used again.

# Application Architecture

	RootSupervisor ("civicmap")
	├── DataSupervisor ("data-layer")
	│   └── audit retention (EVENTS_PERSIST, EVENTS_RETENTION)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── embedded NATS (NATS_EMBEDDED, -tags nats)
	│   └── audit recorder
	└── APISupervisor ("api-layer")
	    └── HTTP server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog with JSON/console output modes
 3. Database: DuckDB with issues, comments, users, keys and the token ledger
 4. Key store: static modalities, then the api_keys table, behind a ristretto cache
 5. Token ledger: duckdb, badger or memory (LEDGER_BACKEND)
 6. Validator: user directory behind a circuit breaker
 7. Auth event stream: watermill gochannel or NATS JetStream
 8. Supervisor tree and HTTP server

# Configuration

	HTTP_PORT=8080               # HTTP server port
	DUCKDB_PATH=/data/civicmap.duckdb
	LEDGER_BACKEND=duckdb        # duckdb, badger, memory
	TOKEN_FRESHNESS_WINDOW=10m
	AUTH_FAILURE_STATUS=200      # status for rejected tokens on issue endpoints
	EVENTS_TRANSPORT=channel     # channel or nats
	LOG_LEVEL=info

# Build Tags

	go build ./cmd/server                # in-process auth event stream
	go build -tags nats ./cmd/server     # NATS JetStream transport

# Signal Handling

SIGINT and SIGTERM cancel the tree: the HTTP server drains within
HTTP_TIMEOUT, the recorder stops, then the ledger and database close.
*/
package main
