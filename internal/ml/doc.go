// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

/*
Package ml is the ML engine collaborator of the API.

The engine never trains models itself. It delegates to an external ML worker
over HTTP and keeps the bookkeeping:

  - CreateModel derives a model configuration from a base model and stores it.
  - Train validates the request, reserves the user's training slot in the
    Badger-backed Tracker, submits a job to the worker and returns the running
    Training immediately.
  - Monitor (a suture service) polls the worker, appends epoch metrics,
    publishes progress events and, once a job completes, stores the Fitting.
  - Analyze asks the worker to predict a fitting's labels for a molecule and
    stores the result as an analysis.

# Worker client

WorkerClient retries 429 and 503 responses with exponential backoff,
honoring Retry-After, and throttles itself with golang.org/x/time/rate.
CircuitBreakerWorker wraps it with sony/gobreaker; while the circuit is open
calls fail fast with models.ErrUnavailable.

Worker responses map onto the domain errors: 404 is ErrNotFound, other 4xx
are ErrInvalidArgument, and connection failures are ErrUnavailable.
*/
package ml
