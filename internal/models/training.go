// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package models

import "time"

// TrainingStatus is the lifecycle state of a training.
type TrainingStatus string

const (
	TrainingRunning   TrainingStatus = "running"
	TrainingCompleted TrainingStatus = "completed"
	TrainingFailed    TrainingStatus = "failed"
	TrainingStopped   TrainingStatus = "stopped"
)

// Terminal reports whether no further transitions can happen.
func (s TrainingStatus) Terminal() bool {
	return s == TrainingCompleted || s == TrainingFailed || s == TrainingStopped
}

// TrainingRequest carries the typed arguments of train. Accuracy is an
// optional early-stopping target in percent; zero disables it.
type TrainingRequest struct {
	DatasetID   string
	ModelID     string
	Fingerprint string
	Labels      []string
	Epochs      int
	Accuracy    float64
	BatchSize   int
}

// EpochMetrics is one point of the live training series.
type EpochMetrics struct {
	Epoch   int                `json:"epoch"`
	Metrics map[string]float64 `json:"metrics"`
}

// Training is the persisted state of a user's training job.
type Training struct {
	ID          string         `json:"id"`
	UserID      string         `json:"userID"`
	JobID       string         `json:"jobID"`
	FittingID   string         `json:"fittingID"`
	ModelID     string         `json:"modelID"`
	ModelName   string         `json:"modelName"`
	DatasetID   string         `json:"datasetID"`
	Fingerprint string         `json:"fingerprint"`
	Labels      []string       `json:"labels"`
	Epochs      int            `json:"epochs"`
	BatchSize   int            `json:"batchSize"`
	Accuracy    float64        `json:"accuracy"`
	Status      TrainingStatus `json:"status"`
	History     []EpochMetrics `json:"history"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	FinishedAt  *time.Time     `json:"finishedAt,omitempty"`
}

// LastEpoch returns the highest epoch recorded, or 0.
func (t *Training) LastEpoch() int {
	if len(t.History) == 0 {
		return 0
	}
	return t.History[len(t.History)-1].Epoch
}

// TrainingEventType names a training lifecycle event.
type TrainingEventType string

const (
	EventTrainingStarted   TrainingEventType = "training_started"
	EventTrainingProgress  TrainingEventType = "training_progress"
	EventTrainingCompleted TrainingEventType = "training_completed"
	EventTrainingFailed    TrainingEventType = "training_failed"
	EventTrainingStopped   TrainingEventType = "training_stopped"
)

// TrainingEvent is published on the event bus and forwarded to the
// websocket clients of UserID.
type TrainingEvent struct {
	Type       TrainingEventType `json:"type"`
	UserID     string            `json:"userID"`
	TrainingID string            `json:"trainingID"`
	Epoch      *EpochMetrics     `json:"epoch,omitempty"`
	Training   *Training         `json:"training,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
