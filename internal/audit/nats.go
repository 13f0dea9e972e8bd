// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

//go:build nats

package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/civicmap/internal/metrics"
)

// NATSPublisher is a JetStream Transport. Publishes go through a circuit
// breaker so a dead broker fails fast instead of stalling requests.
type NATSPublisher struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	breaker    *gobreaker.CircuitBreaker[any]
	topic      string

	mu     sync.RWMutex
	closed bool
}

// NewNATSPublisher connects to url, ensures the stream carrying cfg.Topic
// exists and returns a transport with a durable subscriber bound to it.
func NewNATSPublisher(cfg NATSConfig, logger watermill.LoggerAdapter) (*NATSPublisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	cfg.setDefaults()

	if err := ensureStream(cfg); err != nil {
		return nil, err
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{
				"url": nc.ConnectedUrl(),
			})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false, // stream is created by ensureStream
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     5 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: false,
			AckAsync:      false,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(cfg.Stream),
				natsgo.DeliverNew(),
				natsgo.MaxDeliver(5),
			},
			DurablePrefix: cfg.Durable,
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &NATSPublisher{
		publisher:  pub,
		subscriber: sub,
		breaker:    newPublishBreaker(),
		topic:      cfg.Topic,
	}, nil
}

// ensureStream creates or updates the JetStream stream for the topic.
func ensureStream(cfg NATSConfig) error {
	nc, err := natsgo.Connect(cfg.URL, natsgo.Timeout(10*time.Second))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	streamCfg := jetstream.StreamConfig{
		Name:       cfg.Stream,
		Subjects:   []string{cfg.Topic},
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     cfg.MaxAge,
		Duplicates: 2 * time.Minute,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}

	_, err = js.Stream(ctx, cfg.Stream)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("update stream %s: %w", cfg.Stream, err)
		}
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, streamCfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Stream, err)
		}
	default:
		return fmt.Errorf("check stream %s: %w", cfg.Stream, err)
	}
	return nil
}

func newPublishBreaker() *gobreaker.CircuitBreaker[any] {
	const name = "audit-nats"
	metrics.InitBreaker(name)
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.RecordBreakerTransition(name, from, to)
		},
	})
}

// Publish implements Publisher. The event id doubles as the Nats-Msg-Id so
// JetStream drops duplicates within its window.
func (p *NATSPublisher) Publish(_ context.Context, event *Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		metrics.RecordAuthEventPublish(p.Name(), ErrPublisherClosed)
		return ErrPublisherClosed
	}

	msg, err := toMessage(event)
	if err != nil {
		metrics.RecordAuthEventPublish(p.Name(), err)
		return err
	}
	msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(p.topic, msg)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordBreakerResult("audit-nats", "rejected")
	case err != nil:
		metrics.RecordBreakerResult("audit-nats", "failure")
	default:
		metrics.RecordBreakerResult("audit-nats", "success")
	}
	metrics.RecordAuthEventPublish(p.Name(), err)
	return err
}

// Subscriber implements Transport.
func (p *NATSPublisher) Subscriber() message.Subscriber {
	return p.subscriber
}

// Topic implements Transport.
func (p *NATSPublisher) Topic() string {
	return p.topic
}

// Name implements Transport.
func (p *NATSPublisher) Name() string {
	return "nats"
}

// BreakerState returns the publish circuit breaker state.
func (p *NATSPublisher) BreakerState() gobreaker.State {
	return p.breaker.State()
}

// Close implements Publisher.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	return errors.Join(p.subscriber.Close(), p.publisher.Close())
}
