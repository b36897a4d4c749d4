// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/machine/internal/metrics"
	"github.com/tomtom215/machine/internal/models"
)

// Backend names reported by Bus.Backend.
const (
	BackendGoChannel = "gochannel"
	BackendNATS      = "nats"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event bus is closed")

// HandlerFunc processes one decoded event.
type HandlerFunc func(ctx context.Context, event models.TrainingEvent) error

// Bus publishes and consumes training events on a single topic.
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	closers    []func() error
	topic      string
	backend    string
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// NewBus connects the configured backend.
func NewBus(cfg Config, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	cfg = cfg.withDefaults()

	if cfg.NATSURL == "" {
		pubsub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: cfg.OutputChannelBuffer,
		}, logger)
		return &Bus{
			publisher:  pubsub,
			subscriber: pubsub,
			closers:    []func() error{pubsub.Close},
			topic:      cfg.Topic,
			backend:    BackendGoChannel,
			logger:     logger,
		}, nil
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("machine"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	// No queue group: every instance must see every event to reach its own
	// websocket clients.
	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Bus{
		publisher:  pub,
		subscriber: sub,
		closers:    []func() error{sub.Close, pub.Close},
		topic:      cfg.Topic,
		backend:    BackendNATS,
		logger:     logger,
	}, nil
}

// Topic returns the topic events are published on.
func (b *Bus) Topic() string {
	return b.topic
}

// Backend returns BackendGoChannel or BackendNATS.
func (b *Bus) Backend() string {
	return b.backend
}

// Publish sends one event. Timestamp is set when zero.
func (b *Bus) Publish(ctx context.Context, event models.TrainingEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	msg, err := EncodeEvent(&event)
	if err != nil {
		metrics.EventsPublishErrors.Inc()
		return err
	}
	msg.SetContext(ctx)

	if err := b.publisher.Publish(b.topic, msg); err != nil {
		metrics.EventsPublishErrors.Inc()
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// Subscribe returns the raw message channel for the topic. The channel is
// closed when ctx is done or the bus is closed.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrClosed
	}
	return b.subscriber.Subscribe(ctx, b.topic)
}

// Handle subscribes and runs fn for every event until ctx is done. Messages
// are acked even when fn fails: a training event is only useful live, and a
// redelivery loop would block the topic.
func (b *Bus) Handle(ctx context.Context, fn HandlerFunc) error {
	messages, err := b.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrClosed
			}
			b.dispatch(ctx, msg, fn)
		}
	}
}

func (b *Bus) dispatch(ctx context.Context, msg *message.Message, fn HandlerFunc) {
	defer msg.Ack()

	event, err := DecodeEvent(msg)
	if err != nil {
		b.logger.Error("Dropping undecodable event", err, watermill.LogFields{"message_uuid": msg.UUID})
		return
	}
	metrics.EventsConsumed.WithLabelValues(string(event.Type)).Inc()

	if err := fn(ctx, *event); err != nil {
		b.logger.Error("Event handler failed", err, watermill.LogFields{
			"message_uuid": msg.UUID,
			"type":         string(event.Type),
			"user_id":      event.UserID,
		})
	}
}

// Close shuts down subscriber and publisher. Safe to call more than once.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var errs []error
	for _, closeFn := range b.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
