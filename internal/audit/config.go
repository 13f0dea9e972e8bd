// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package audit

import "time"

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	URL     string
	Topic   string
	Stream  string        // JetStream stream name; must not contain dots
	Durable string        // durable consumer prefix for the recorder
	MaxAge  time.Duration // stream retention
}

// DefaultStream is the JetStream stream holding authentication events.
const DefaultStream = "CIVICMAP_AUTH"

func (c *NATSConfig) setDefaults() {
	if c.Topic == "" {
		c.Topic = "auth.events"
	}
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.Durable == "" {
		c.Durable = "civicmap-recorder"
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 7 * 24 * time.Hour
	}
}

// EmbeddedServerConfig configures the in-process NATS server.
type EmbeddedServerConfig struct {
	Host     string
	Port     int // -1 picks a random free port
	StoreDir string
}
