// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

// Package testinfra starts Docker containers for integration tests with
// testcontainers-go. Every file carries the integration build tag:
//
//	go test -tags integration ./internal/events/...
//
// # NATS Container
//
// NATSContainer runs a NATS server so the events bus can be exercised on
// its NATS backend instead of the in-process channel:
//
//	func TestBus_NATS(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    nats, err := testinfra.NewNATSContainer(ctx)
//	    ...
//	}
//
// Tests are skipped when Docker is unavailable. The first run pulls the
// image.
package testinfra
