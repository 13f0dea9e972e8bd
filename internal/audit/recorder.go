// Civicmap - Geo-tagged Issue Reporting API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/civicmap

package audit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/civicmap/internal/logging"
	"github.com/tomtom215/civicmap/internal/metrics"
)

// DefaultRetain is the number of events a Recorder keeps when none is configured.
const DefaultRetain = 200

const storeTimeout = 5 * time.Second

// Recorder consumes the event stream: each event is written to the security
// log, counted, and kept in a bounded in-memory window. It implements
// suture.Service.
type Recorder struct {
	subscriber message.Subscriber
	topic      string
	security   *logging.SecurityLogger
	store      Store

	mu     sync.RWMutex
	recent []Event
	next   int
	full   bool

	ready     chan struct{}
	readyOnce sync.Once
}

// NewRecorder creates a recorder for transport's topic retaining the last
// retain events.
func NewRecorder(transport Transport, retain int) *Recorder {
	return NewRecorderFor(transport.Subscriber(), transport.Topic(), retain)
}

// NewRecorderFor creates a recorder reading topic from subscriber.
func NewRecorderFor(subscriber message.Subscriber, topic string, retain int) *Recorder {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &Recorder{
		subscriber: subscriber,
		topic:      topic,
		security:   logging.NewSecurityLogger(),
		recent:     make([]Event, retain),
		ready:      make(chan struct{}),
	}
}

// WithStore makes the recorder persist every event to store. Save errors are
// logged and counted; the event is still retained in memory.
func (r *Recorder) WithStore(store Store) *Recorder {
	r.store = store
	return r
}

// Serve subscribes and records events until ctx is done or the transport
// closes the subscription.
func (r *Recorder) Serve(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.topic, err)
	}
	r.readyOnce.Do(func() { close(r.ready) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("subscription to %s closed", r.topic)
			}
			r.handle(ctx, msg)
		}
	}
}

// Ready is closed once the recorder has subscribed.
func (r *Recorder) Ready() <-chan struct{} {
	return r.ready
}

// String implements fmt.Stringer for supervisor logging.
func (r *Recorder) String() string {
	return "audit-recorder"
}

func (r *Recorder) handle(ctx context.Context, msg *message.Message) {
	// Malformed events are acked too; redelivery cannot fix them.
	defer msg.Ack()

	event, err := UnmarshalEvent(msg.Payload)
	if err != nil {
		metrics.AuthEventsRecorded.WithLabelValues("invalid").Inc()
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("Dropping malformed audit event")
		return
	}

	modality := strconv.FormatInt(event.ModalityID, 10)
	if event.Succeeded() {
		r.security.LogTokenAccepted(strconv.FormatInt(event.UserID, 10), event.Username, modality, event.RemoteIP)
	} else {
		r.security.LogTokenRejected(modality, event.Kind, event.Stage, event.RemoteIP, event.Method+" "+event.Path)
	}
	metrics.AuthEventsRecorded.WithLabelValues(event.Type).Inc()

	if r.store != nil {
		saveCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		if err := r.store.Save(saveCtx, event); err != nil {
			metrics.AuthEventsRecorded.WithLabelValues("store_failed").Inc()
			logging.Warn().Err(err).Str("event_id", event.ID).Msg("Failed to persist audit event")
		}
		cancel()
	}

	r.mu.Lock()
	r.recent[r.next] = *event
	r.next = (r.next + 1) % len(r.recent)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
}

// Recent returns the retained events, oldest first.
func (r *Recorder) Recent() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full {
		out := make([]Event, r.next)
		copy(out, r.recent[:r.next])
		return out
	}
	out := make([]Event, 0, len(r.recent))
	out = append(out, r.recent[r.next:]...)
	out = append(out, r.recent[:r.next]...)
	return out
}
