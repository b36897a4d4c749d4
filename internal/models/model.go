// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package models

import "time"

// BaseModel is a predefined template a Model is derived from.
type BaseModel struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Type       string                 `json:"type"`
	TaskType   string                 `json:"taskType"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Model is a user-owned configuration of a base model.
// Parameters are free-form (e.g. units_per_layer, optimizer, metrics).
type Model struct {
	ID          string                 `json:"id"`
	Name        string                 `json:"name"`
	BaseModelID string                 `json:"baseModelID"`
	Parameters  map[string]interface{} `json:"parameters"`
	FittingIDs  []string               `json:"fittingIDs"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// ModelSpec carries the arguments of create-model.
type ModelSpec struct {
	Name        string
	BaseModelID string
	Parameters  map[string]interface{}
}

// Fitting is a model trained on a dataset for a set of labels.
type Fitting struct {
	ID          string    `json:"id"`
	ModelID     string    `json:"modelID"`
	ModelName   string    `json:"modelName"`
	DatasetID   string    `json:"datasetID"`
	Fingerprint string    `json:"fingerprint"`
	Labels      []string  `json:"labels"`
	Epochs      int       `json:"epochs"`
	BatchSize   int       `json:"batchSize"`
	Accuracy    float64   `json:"accuracy"`
	CreatedAt   time.Time `json:"createdAt"`
}
