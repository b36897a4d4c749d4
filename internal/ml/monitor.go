// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package ml

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/machine/internal/logging"
	"github.com/tomtom215/machine/internal/metrics"
	"github.com/tomtom215/machine/internal/models"
)

// DefaultPollInterval is used when the monitor is given no interval.
const DefaultPollInterval = 2 * time.Second

// Monitor polls the ML worker for every running training and records
// progress. It implements suture.Service.
type Monitor struct {
	engine   *Engine
	interval time.Duration
	logger   zerolog.Logger
}

// NewMonitor creates a monitor for engine.
func NewMonitor(engine *Engine, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		engine:   engine,
		interval: interval,
		logger:   logging.WithComponent("training-monitor"),
	}
}

// Serve polls until ctx is cancelled.
func (m *Monitor) Serve(ctx context.Context) error {
	m.logger.Info().Dur("interval", m.interval).Msg("Training monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("Training monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.Poll(ctx)
		}
	}
}

// String returns the service name for the supervisor.
func (m *Monitor) String() string {
	return "training-monitor"
}

// Poll advances every running training once.
func (m *Monitor) Poll(ctx context.Context) {
	running, err := m.engine.tracker.Running(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Failed to list running trainings")
		return
	}
	for i := range running {
		tr := &running[i]
		if err := m.engine.advance(ctx, tr); err != nil && ctx.Err() == nil {
			m.logger.Warn().Err(err).
				Str("user_id", tr.UserID).
				Str("training_id", tr.ID).
				Msg("Failed to poll training, retrying next tick")
		}
	}
}

// advance reconciles one running training with the worker's job state.
func (e *Engine) advance(ctx context.Context, tr *models.Training) error {
	if tr.JobID == "" {
		if e.now().Sub(tr.StartedAt) < submitGrace {
			return nil
		}
		return e.conclude(ctx, tr, nil, models.TrainingFailed, "training job was never submitted")
	}

	state, err := e.worker.GetJob(ctx, tr.JobID)
	if errors.Is(err, models.ErrNotFound) {
		return e.conclude(ctx, tr, nil, models.TrainingFailed, "training job lost by worker")
	}
	if err != nil {
		return err
	}

	var fresh []models.EpochMetrics
	last := tr.LastEpoch()
	for _, ep := range state.Epochs {
		if ep.Epoch > last {
			fresh = append(fresh, ep)
			last = ep.Epoch
		}
	}

	switch state.Status {
	case JobCompleted:
		if err := e.persistFitting(ctx, tr, state); err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return e.conclude(ctx, tr, fresh, models.TrainingFailed, err.Error())
			}
			return err
		}
		return e.conclude(ctx, tr, fresh, models.TrainingCompleted, "")
	case JobFailed:
		reason := state.Error
		if reason == "" {
			reason = "training job failed"
		}
		return e.conclude(ctx, tr, fresh, models.TrainingFailed, reason)
	case JobCancelled:
		return e.conclude(ctx, tr, fresh, models.TrainingStopped, "")
	}

	if len(fresh) == 0 {
		return nil
	}
	updated, err := e.tracker.Update(ctx, tr.UserID, func(cur *models.Training) error {
		if cur.ID != tr.ID || cur.Status != models.TrainingRunning {
			return errUnchanged
		}
		cur.History = append(cur.History, fresh...)
		cur.UpdatedAt = e.now()
		return nil
	})
	if err != nil {
		return err
	}
	if updated.ID != tr.ID || updated.Status != models.TrainingRunning {
		return nil
	}
	e.publishEpochs(ctx, updated, fresh)
	return nil
}

// persistFitting stores the trained model. A retry after a partial failure
// finds the fitting already present.
func (e *Engine) persistFitting(ctx context.Context, tr *models.Training, state *JobState) error {
	if _, err := e.store.GetFitting(ctx, tr.UserID, tr.FittingID); err == nil {
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	accuracy := state.Accuracy
	if accuracy == 0 {
		accuracy = tr.Accuracy
	}
	return e.store.AddFitting(ctx, tr.UserID, &models.Fitting{
		ID:          tr.FittingID,
		ModelID:     tr.ModelID,
		ModelName:   tr.ModelName,
		DatasetID:   tr.DatasetID,
		Fingerprint: tr.Fingerprint,
		Labels:      tr.Labels,
		Epochs:      tr.Epochs,
		BatchSize:   tr.BatchSize,
		Accuracy:    accuracy,
		CreatedAt:   e.now(),
	})
}

// conclude appends the final epochs and moves the training into status.
// Nothing happens if the training was concluded elsewhere meanwhile.
func (e *Engine) conclude(ctx context.Context, tr *models.Training, fresh []models.EpochMetrics, status models.TrainingStatus, reason string) error {
	concluded := false
	updated, err := e.tracker.Update(ctx, tr.UserID, func(cur *models.Training) error {
		if cur.ID != tr.ID || cur.Status != models.TrainingRunning {
			return errUnchanged
		}
		cur.History = append(cur.History, fresh...)
		e.finish(cur, status, reason)
		concluded = true
		return nil
	})
	if err != nil {
		return err
	}
	if !concluded {
		return nil
	}

	e.publishEpochs(ctx, updated, fresh)
	metrics.RecordTrainingFinished(string(status))

	var typ models.TrainingEventType
	switch status {
	case models.TrainingCompleted:
		typ = models.EventTrainingCompleted
	case models.TrainingStopped:
		typ = models.EventTrainingStopped
	default:
		typ = models.EventTrainingFailed
	}
	e.publish(ctx, typ, updated, nil)

	logging.Info().
		Str("user_id", updated.UserID).
		Str("training_id", updated.ID).
		Str("status", string(status)).
		Str("reason", reason).
		Int("epochs_recorded", len(updated.History)).
		Msg("Training finished")
	return nil
}

func (e *Engine) publishEpochs(ctx context.Context, tr *models.Training, fresh []models.EpochMetrics) {
	for i := range fresh {
		metrics.TrainingEpochs.Inc()
		e.publish(ctx, models.EventTrainingProgress, tr, &fresh[i])
	}
}
