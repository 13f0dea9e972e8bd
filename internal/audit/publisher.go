// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/civicmap/internal/metrics"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("audit publisher is closed")

// Publisher hands events to a transport.
type Publisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// Transport is a Publisher whose events can be consumed by a Recorder.
type Transport interface {
	Publisher
	Subscriber() message.Subscriber
	Topic() string
	Name() string
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, *Event) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// toMessage wraps an event in a watermill message keyed by the event id.
func toMessage(event *Event) (*message.Message, error) {
	data, err := event.Marshal()
	if err != nil {
		return nil, fmt.Errorf("serialize event: %w", err)
	}
	msg := message.NewMessage(event.ID, data)
	msg.Metadata.Set("type", event.Type)
	if event.RequestID != "" {
		msg.Metadata.Set("request_id", event.RequestID)
	}
	return msg, nil
}

// ChannelPublisher is an in-process Transport built on watermill's gochannel.
// Events published with no subscriber attached are dropped.
type ChannelPublisher struct {
	pubsub *gochannel.GoChannel
	topic  string

	mu     sync.RWMutex
	closed bool
}

// NewChannelPublisher creates an in-process transport for topic. buffer is
// the per-subscriber output buffer.
func NewChannelPublisher(topic string, buffer int, logger watermill.LoggerAdapter) *ChannelPublisher {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelPublisher{
		pubsub: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: int64(buffer),
		}, logger),
		topic: topic,
	}
}

// Publish implements Publisher.
func (p *ChannelPublisher) Publish(_ context.Context, event *Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		metrics.RecordAuthEventPublish(p.Name(), ErrPublisherClosed)
		return ErrPublisherClosed
	}

	msg, err := toMessage(event)
	if err == nil {
		err = p.pubsub.Publish(p.topic, msg)
	}
	metrics.RecordAuthEventPublish(p.Name(), err)
	return err
}

// Subscriber implements Transport.
func (p *ChannelPublisher) Subscriber() message.Subscriber {
	return p.pubsub
}

// Topic implements Transport.
func (p *ChannelPublisher) Topic() string {
	return p.topic
}

// Name implements Transport.
func (p *ChannelPublisher) Name() string {
	return "channel"
}

// Close implements Publisher. Subscriber channels are closed too.
func (p *ChannelPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.pubsub.Close()
}
