// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

/*
Package events carries training events between the ML engine and the
realtime layer over Watermill.

Two backends are supported:

  - GoChannel (default): in-process pub/sub, used when no NATS URL is set.
  - NATS core (watermill-nats, JetStream disabled): every backend instance
    receives every event, so a browser connected to any instance sees the
    progress of a training started on another.

Usage:

	bus, err := events.NewBus(events.Config{Topic: "machine.training"}, logging.NewWatermillAdapter())
	if err != nil {
	    return err
	}
	defer bus.Close()

	go bus.Handle(ctx, func(ctx context.Context, ev models.TrainingEvent) error {
	    hub.SendToUser(ev.UserID, ev)
	    return nil
	})
	_ = bus.Publish(ctx, models.TrainingEvent{Type: models.EventTrainingStarted, UserID: "yee"})

Events are JSON-encoded TrainingEvent values. Message metadata carries the
event type and user ID for routing without decoding the payload.
*/
package events
