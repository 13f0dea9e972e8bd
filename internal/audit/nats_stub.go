// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

//go:build !nats

package audit

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// ErrNATSUnavailable is returned by the NATS constructors in builds without
// the nats tag.
var ErrNATSUnavailable = errors.New("NATS transport not available: build with -tags=nats")

// NATSPublisher is a stub when NATS dependencies are not available.
// Build with -tags=nats to enable the JetStream transport.
type NATSPublisher struct{}

// NewNATSPublisher returns ErrNATSUnavailable.
func NewNATSPublisher(NATSConfig, watermill.LoggerAdapter) (*NATSPublisher, error) {
	return nil, ErrNATSUnavailable
}

// Publish returns ErrNATSUnavailable.
func (p *NATSPublisher) Publish(context.Context, *Event) error { return ErrNATSUnavailable }

// Subscriber returns nil for the stub.
func (p *NATSPublisher) Subscriber() message.Subscriber { return nil }

// Topic returns an empty topic for the stub.
func (p *NATSPublisher) Topic() string { return "" }

// Name implements Transport.
func (p *NATSPublisher) Name() string { return "nats" }

// Close is a no-op stub.
func (p *NATSPublisher) Close() error { return nil }
