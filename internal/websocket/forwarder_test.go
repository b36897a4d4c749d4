// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/machine/internal/events"
	"github.com/tomtom215/machine/internal/models"
)

// chanSource feeds events from a channel.
type chanSource struct {
	events chan models.TrainingEvent
}

func (s *chanSource) Handle(ctx context.Context, fn events.HandlerFunc) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-s.events:
			_ = fn(ctx, e)
		}
	}
}

func TestEventForwarder_RoutesToUser(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	yee := newTestClient(hub, "yee")
	other := newTestClient(hub, "other")
	registerClient(t, hub, yee)
	registerClient(t, hub, other)

	src := &chanSource{events: make(chan models.TrainingEvent, 4)}
	fwd := NewEventForwarder(hub, src)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fwd.Serve(ctx) }()

	src.events <- models.TrainingEvent{Type: models.EventTrainingStarted}
	src.events <- models.TrainingEvent{Type: models.EventTrainingCompleted, UserID: "yee", TrainingID: "t9"}

	if msg := receive(t, yee); msg.Type != string(models.EventTrainingCompleted) {
		t.Errorf("message type = %q, want training_completed", msg.Type)
	}
	expectNothing(t, other)

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("forwarder did not stop")
	}
	if fwd.String() != "event-forwarder" {
		t.Errorf("String() = %q", fwd.String())
	}
}

func TestEventForwarder_WithBus(t *testing.T) {
	t.Parallel()

	hub := startHub(t)
	client := newTestClient(hub, "yee")
	registerClient(t, hub, client)

	bus, err := events.NewBus(events.Config{}, nil)
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = NewEventForwarder(hub, bus).Serve(ctx) }()

	// The in-process backend drops messages published before the
	// subscription exists, so publish until one arrives.
	deadline := time.Now().Add(3 * time.Second)
	for {
		if err := bus.Publish(ctx, models.TrainingEvent{Type: models.EventTrainingProgress, UserID: "yee"}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		select {
		case msg := <-client.send:
			if msg.Type != string(models.EventTrainingProgress) {
				t.Errorf("message type = %q", msg.Type)
			}
			return
		case <-time.After(20 * time.Millisecond):
		}
		if time.Now().After(deadline) {
			t.Fatal("no event reached the client")
		}
	}
}
