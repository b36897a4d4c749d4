// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

/*
Package logging provides the process-wide zerolog logger for MAChINE.

Initialize once from main:

	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

Log with the package-level helpers, or with request-scoped fields:

	logging.Info().Str("dataset_id", id).Msg("dataset imported")
	logging.Ctx(r.Context()).Warn().Err(err).Msg("analyze failed")

Ctx adds request_id, correlation_id and user_id when they are present in
the context. The middleware package stores the request ID; the api package
stores the user ID from the path.

Adapters:

  - SlogHandler: slog.Handler on top of zerolog, used by sutureslog
  - WatermillAdapter: watermill.LoggerAdapter on top of zerolog, used by
    the event bus

Always terminate an event with Msg or Send, otherwise nothing is written.
*/
package logging
