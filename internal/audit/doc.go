// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

// Package audit carries authentication outcomes off the request path.
//
// The API publishes one Event per authentication attempt. A Transport moves
// events to the Recorder, a supervised service that writes them to the
// security log, counts them and keeps a window of recent events. With a
// Store attached (DuckDBStore, the auth_events table) events are also
// persisted for later querying.
//
// Transports:
//   - ChannelPublisher: in-process, watermill gochannel (default)
//   - NATSPublisher: NATS JetStream via watermill-nats, behind a circuit
//     breaker. Requires the nats build tag; EmbeddedServer can host the
//     broker in-process.
//
// Publishing never decides an authentication outcome. Callers log and
// count publish errors and carry on.
package audit
