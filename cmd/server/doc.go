// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

/*
Package main is the entry point for the MAChINE server.

MAChINE is a workbench for molecule property prediction. Users pick a
dataset and a base model, train fittings on an external ML worker, and
analyze their own molecules with the finished fittings. This binary serves
the HTTP API the web client talks to.

# Application Architecture

The server runs its long-lived components under a Suture v4 supervisor
tree:

	RootSupervisor ("machine")
	├── DataSupervisor ("data-layer")
	│   └── Dataset watcher (optional, DATASETS_WATCH=true)
	├── EngineSupervisor ("engine-layer")
	│   ├── WebSocket hub
	│   ├── Event forwarder (training events to websocket clients)
	│   └── Training monitor (polls the ML worker)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Database: DuckDB storage handler and migrations
 3. Datasets: CSV import from DATASETS_DIR
 4. Training store: BadgerDB tracker of running trainings
 5. Event bus: Watermill over GoChannel, or NATS when NATS_URL is set
 6. ML worker client behind a circuit breaker
 7. HTTP router, WebSocket hub and catalog cache

# Signal Handling

SIGINT and SIGTERM cancel the root context. The supervisor stops every
service, the HTTP server drains in-flight requests within
SHUTDOWN_TIMEOUT, and the stores are closed.

# Example Usage

	export DATASETS_DIR=/data/datasets
	export ML_WORKER_URL=http://ml-worker:5000
	./machine
*/
package main
