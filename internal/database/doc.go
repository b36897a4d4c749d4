// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

// Package database is the storage handler for MAChINE, backed by DuckDB.
//
// # Overview
//
// DB persists users and everything they own (molecules, analyses, model
// configurations, fittings) together with the shared catalog (base models,
// datasets, dataset histograms). Every operation takes a context.Context and
// returns errors wrapping the sentinels in internal/models, so the API layer
// can map them to HTTP status codes.
//
// # Files
//
//   - database.go: connection lifecycle (New, Close, Ping, Checkpoint)
//   - migrations.go: versioned schema and base model seed
//   - users.go, molecules.go, models.go, fittings.go: per-user CRUD
//   - datasets.go: dataset catalog and histogram reads
//   - datasets_import.go: CSV import with read_csv_auto and SQL histograms
//
// # Ownership
//
// All user-owned tables carry a user_id column. DeleteUser removes the user
// and every owned row in a single transaction. DuckDB has no ON DELETE
// CASCADE, so the cascade is explicit.
//
// # Testing
//
// Tests open ":memory:" databases; DuckDB shares one in-memory instance per
// sql.DB, so the connection pool sees a single schema.
package database
