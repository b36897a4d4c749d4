// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

/*
Package models defines the data structures shared by the storage handler,
the ML engine and the HTTP layer.

Entities:

  - User: opaque identifier plus display name
  - Molecule: a SMILES string owned by a user, with its analyses
  - Analysis: per-label predictions of a fitting for one molecule
  - Model: a user-defined configuration derived from a BaseModel
  - Fitting: a trained model (model + dataset + labels)
  - Dataset: an imported CSV with label histograms
  - Training: the state of a running or finished training job

JSON field names follow the browser client (camelCase, "ID" suffixes).

Errors:

The sentinel errors in errors.go (ErrNotFound, ErrInvalidArgument,
ErrConflict, ErrUnavailable) are wrapped by every collaborator and mapped
to HTTP status codes by the api package.
*/
package models
