// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package models

import "time"

// Molecule is identified per user by its SMILES string.
type Molecule struct {
	Smiles    string     `json:"smiles"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	Analyses  []Analysis `json:"analyses"`
}

// Analysis holds the predictions of one fitting for one molecule.
// Results maps each label of the fitting to its predicted value.
type Analysis struct {
	ID         string                 `json:"id"`
	MoleculeID string                 `json:"moleculeID"`
	FittingID  string                 `json:"fittingID"`
	ModelName  string                 `json:"modelName"`
	Results    map[string]float64     `json:"results"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
}
