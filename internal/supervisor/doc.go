// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

/*
Package supervisor runs the long-lived goroutines of the server under a
suture v4 supervisor tree.

	root ("machine")
	├── data-layer
	│   └── dataset-watcher (when datasets.watch is set)
	├── engine-layer
	│   ├── websocket-hub
	│   ├── event-forwarder
	│   └── training-monitor
	└── api-layer
	    └── http-server

Each layer restarts its services independently, so a crashing training
monitor does not take the HTTP API down with it. Supervisor events are logged
through sutureslog and the zerolog-backed slog handler from
internal/logging.

Cancelling the context passed to Serve stops every service; services that do
not return within ShutdownTimeout are listed by UnstoppedServiceReport.
*/
package supervisor
