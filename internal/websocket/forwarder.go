// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package websocket

import (
	"context"

	"github.com/tomtom215/machine/internal/events"
	"github.com/tomtom215/machine/internal/logging"
	"github.com/tomtom215/machine/internal/models"
)

// EventSource delivers training events to a handler until ctx ends.
// *events.Bus satisfies it.
type EventSource interface {
	Handle(ctx context.Context, fn events.HandlerFunc) error
}

// EventForwarder bridges the event bus to the hub. With a NATS backend every
// instance receives every event and forwards it to its own clients.
type EventForwarder struct {
	hub    *Hub
	source EventSource
}

// NewEventForwarder creates a forwarder from source to hub.
func NewEventForwarder(hub *Hub, source EventSource) *EventForwarder {
	return &EventForwarder{hub: hub, source: source}
}

// Serve forwards events until ctx is cancelled. It implements suture.Service.
func (f *EventForwarder) Serve(ctx context.Context) error {
	logging.Info().Msg("Training event forwarder started")
	err := f.source.Handle(ctx, func(_ context.Context, event models.TrainingEvent) error {
		if event.UserID == "" {
			logging.Debug().Str("type", string(event.Type)).Msg("Skipping training event without user")
			return nil
		}
		f.hub.SendTrainingEvent(event)
		return nil
	})
	logging.Info().Msg("Training event forwarder stopped")
	return err
}

// String returns the service name for the supervisor.
func (f *EventForwarder) String() string {
	return "event-forwarder"
}
