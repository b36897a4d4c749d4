// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package ml

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/machine/internal/logging"
	"github.com/tomtom215/machine/internal/metrics"
	"github.com/tomtom215/machine/internal/models"
)

// Storage is the subset of the storage handler the engine needs.
// *database.DB satisfies it.
type Storage interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetBaseModel(ctx context.Context, id string) (*models.BaseModel, error)
	GetModel(ctx context.Context, userID, modelID string) (*models.Model, error)
	AddModel(ctx context.Context, userID string, model *models.Model) error
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	GetFitting(ctx context.Context, userID, fittingID string) (*models.Fitting, error)
	AddFitting(ctx context.Context, userID string, fitting *models.Fitting) error
	GetMolecule(ctx context.Context, userID, smiles string) (*models.Molecule, error)
	AddAnalysis(ctx context.Context, userID, moleculeID string, analysis *models.Analysis) error
}

// Publisher receives training lifecycle events. *events.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, event models.TrainingEvent) error
}

// breakerState is implemented by workers that expose a circuit breaker.
type breakerState interface {
	State() string
}

// submitGrace is how long a running training may lack a job ID before the
// monitor gives up on it.
const submitGrace = time.Minute

// Engine creates models, runs trainings on the ML worker and analyzes
// molecules with trained fittings.
type Engine struct {
	store   Storage
	worker  Worker
	tracker *Tracker
	events  Publisher
	now     func() time.Time
	newID   func() string
}

// NewEngine wires the engine. events may be nil.
func NewEngine(store Storage, worker Worker, tracker *Tracker, events Publisher) *Engine {
	return &Engine{
		store:   store,
		worker:  worker,
		tracker: tracker,
		events:  events,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.New().String() },
	}
}

// CreateModel stores a new model configuration derived from a base model.
// Parameters in spec override the base model defaults.
func (e *Engine) CreateModel(ctx context.Context, userID string, spec models.ModelSpec) (*models.Model, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, models.InvalidArgumentf("model name is required")
	}
	if spec.BaseModelID == "" {
		return nil, models.InvalidArgumentf("base model is required")
	}
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	base, err := e.store.GetBaseModel(ctx, spec.BaseModelID)
	if err != nil {
		return nil, err
	}

	params := make(map[string]interface{}, len(base.Parameters)+len(spec.Parameters))
	for k, v := range base.Parameters {
		params[k] = v
	}
	for k, v := range spec.Parameters {
		params[k] = v
	}

	model := &models.Model{
		ID:          e.newID(),
		Name:        name,
		BaseModelID: base.ID,
		Parameters:  params,
		FittingIDs:  []string{},
		CreatedAt:   e.now(),
	}
	if err := e.store.AddModel(ctx, userID, model); err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("model_id", model.ID).
		Str("base_model_id", base.ID).
		Msg("Model created")
	return model, nil
}

// Train starts a training job and returns the running training at once.
// Progress is picked up by the Monitor.
func (e *Engine) Train(ctx context.Context, userID string, req models.TrainingRequest) (*models.Training, error) {
	if err := validateTrainingRequest(req); err != nil {
		return nil, err
	}
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	model, err := e.store.GetModel(ctx, userID, req.ModelID)
	if err != nil {
		return nil, err
	}
	base, err := e.store.GetBaseModel(ctx, model.BaseModelID)
	if err != nil {
		return nil, err
	}
	dataset, err := e.store.GetDataset(ctx, req.DatasetID)
	if err != nil {
		return nil, err
	}
	for _, label := range req.Labels {
		if !dataset.HasLabel(label) {
			return nil, models.InvalidArgumentf("dataset %s has no label %q", dataset.ID, label)
		}
	}

	now := e.now()
	tr := &models.Training{
		ID:          e.newID(),
		UserID:      userID,
		FittingID:   e.newID(),
		ModelID:     model.ID,
		ModelName:   model.Name,
		DatasetID:   dataset.ID,
		Fingerprint: req.Fingerprint,
		Labels:      append([]string(nil), req.Labels...),
		Epochs:      req.Epochs,
		BatchSize:   req.BatchSize,
		Accuracy:    req.Accuracy,
		Status:      models.TrainingRunning,
		History:     []models.EpochMetrics{},
		StartedAt:   now,
		UpdatedAt:   now,
	}

	// Reserve the slot before talking to the worker so concurrent calls
	// cannot both submit.
	if err := e.tracker.Begin(ctx, tr); err != nil {
		return nil, err
	}

	jobID, err := e.worker.SubmitJob(ctx, &JobRequest{
		JobID:       tr.ID,
		FittingID:   tr.FittingID,
		UserID:      userID,
		DatasetID:   dataset.ID,
		DatasetPath: dataset.Path,
		Model:       *model,
		BaseModel:   *base,
		Fingerprint: tr.Fingerprint,
		Labels:      tr.Labels,
		Epochs:      tr.Epochs,
		BatchSize:   tr.BatchSize,
		Accuracy:    tr.Accuracy,
	})
	if err != nil {
		e.abandon(userID, tr.ID, err)
		return nil, fmt.Errorf("failed to start training: %w", err)
	}

	// The worker owns a job now; record it even if the caller has gone away
	// so the monitor and StopTraining can reach it.
	ctx = context.WithoutCancel(ctx)
	trainingID := tr.ID
	tr, err = e.tracker.Update(ctx, userID, func(cur *models.Training) error {
		if cur.ID != trainingID {
			return errUnchanged
		}
		cur.JobID = jobID
		cur.UpdatedAt = e.now()
		return nil
	})
	if err != nil {
		if cerr := e.worker.CancelJob(ctx, jobID); cerr != nil && !errors.Is(cerr, models.ErrNotFound) {
			logging.Ctx(ctx).Error().Err(cerr).Str("job_id", jobID).Msg("Failed to cancel unrecorded training job")
		}
		e.abandon(userID, trainingID, err)
		return nil, err
	}

	metrics.RecordTrainingStarted()
	e.publish(ctx, models.EventTrainingStarted, tr, nil)

	logging.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("training_id", tr.ID).
		Str("job_id", jobID).
		Str("dataset_id", tr.DatasetID).
		Strs("labels", tr.Labels).
		Int("epochs", tr.Epochs).
		Msg("Training started")
	return tr, nil
}

// abandon marks a reserved training failed after the worker refused it.
func (e *Engine) abandon(userID, trainingID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := e.tracker.Update(ctx, userID, func(cur *models.Training) error {
		if cur.ID != trainingID {
			return errUnchanged
		}
		e.finish(cur, models.TrainingFailed, cause.Error())
		return nil
	})
	if err != nil {
		logging.Error().Err(err).Str("training_id", trainingID).Msg("Failed to release training slot")
	}
}

// StopTraining cancels the user's running training.
func (e *Engine) StopTraining(ctx context.Context, userID string) (*models.Training, error) {
	current, err := e.tracker.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.TrainingRunning {
		return nil, models.NotFoundf("no running training for user %s", userID)
	}

	if current.JobID != "" {
		if err := e.worker.CancelJob(ctx, current.JobID); err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("failed to cancel training: %w", err)
		}
	}

	stopped := false
	tr, err := e.tracker.Update(ctx, userID, func(cur *models.Training) error {
		if cur.ID != current.ID || cur.Status != models.TrainingRunning {
			return errUnchanged
		}
		e.finish(cur, models.TrainingStopped, "")
		stopped = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !stopped {
		// The monitor finished it first.
		return tr, nil
	}

	metrics.RecordTrainingFinished(string(models.TrainingStopped))
	e.publish(ctx, models.EventTrainingStopped, tr, nil)

	logging.Ctx(ctx).Info().Str("user_id", userID).Str("training_id", tr.ID).Msg("Training stopped")
	return tr, nil
}

// ForgetUser drops the user's training record. It is called once the
// user's data is deleted, after StopTraining.
func (e *Engine) ForgetUser(ctx context.Context, userID string) error {
	if err := e.tracker.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to forget training of user %s: %w", userID, err)
	}
	return nil
}

// TrainingStatus returns the user's latest training.
func (e *Engine) TrainingStatus(ctx context.Context, userID string) (*models.Training, error) {
	return e.tracker.Get(ctx, userID)
}

// Analyze predicts the labels of a fitting for one of the user's molecules
// and stores the result as an analysis of that molecule.
func (e *Engine) Analyze(ctx context.Context, userID, fittingID, moleculeID string) (analysis *models.Analysis, err error) {
	defer func() { metrics.RecordAnalysis(err) }()

	if fittingID == "" {
		return nil, models.InvalidArgumentf("fittingID is required")
	}
	if moleculeID == "" {
		return nil, models.InvalidArgumentf("moleculeID is required")
	}
	fitting, err := e.store.GetFitting(ctx, userID, fittingID)
	if err != nil {
		return nil, err
	}
	molecule, err := e.store.GetMolecule(ctx, userID, moleculeID)
	if err != nil {
		return nil, err
	}

	pred, err := e.worker.Predict(ctx, &PredictRequest{
		FittingID:   fitting.ID,
		Smiles:      molecule.Smiles,
		Fingerprint: fitting.Fingerprint,
		Labels:      fitting.Labels,
	})
	if err != nil {
		return nil, fmt.Errorf("prediction failed: %w", err)
	}

	analysis = &models.Analysis{
		ID:        e.newID(),
		FittingID: fitting.ID,
		ModelName: fitting.ModelName,
		Results:   pred.Results,
		Metadata: map[string]interface{}{
			"datasetID":   fitting.DatasetID,
			"fingerprint": fitting.Fingerprint,
			"modelID":     fitting.ModelID,
		},
		CreatedAt: e.now(),
	}
	if err := e.store.AddAnalysis(ctx, userID, molecule.Smiles, analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}

// Ready reports whether trainings can be tracked and the worker circuit is
// not open.
func (e *Engine) Ready() error {
	if !e.tracker.Healthy() {
		return models.Unavailablef("training store closed")
	}
	if b, ok := e.worker.(breakerState); ok && b.State() == "open" {
		return models.Unavailablef("ml worker circuit open")
	}
	return nil
}

// finish moves tr into a terminal state.
func (e *Engine) finish(tr *models.Training, status models.TrainingStatus, reason string) {
	now := e.now()
	tr.Status = status
	tr.Error = reason
	tr.UpdatedAt = now
	tr.FinishedAt = &now
}

// publish emits a training event. Failures are logged; the training state in
// the tracker stays authoritative.
func (e *Engine) publish(ctx context.Context, typ models.TrainingEventType, tr *models.Training, epoch *models.EpochMetrics) {
	if e.events == nil {
		return
	}
	event := models.TrainingEvent{
		Type:       typ,
		UserID:     tr.UserID,
		TrainingID: tr.ID,
		Epoch:      epoch,
		Training:   tr,
		Timestamp:  e.now(),
	}
	if err := e.events.Publish(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Err(err).
			Str("event_type", string(typ)).
			Str("training_id", tr.ID).
			Msg("Failed to publish training event")
	}
}

func validateTrainingRequest(req models.TrainingRequest) error {
	switch {
	case req.DatasetID == "":
		return models.InvalidArgumentf("datasetID is required")
	case req.ModelID == "":
		return models.InvalidArgumentf("modelID is required")
	case req.Fingerprint == "":
		return models.InvalidArgumentf("fingerprint is required")
	case len(req.Labels) == 0:
		return models.InvalidArgumentf("at least one label is required")
	case req.Epochs <= 0:
		return models.InvalidArgumentf("epochs must be positive")
	case req.BatchSize <= 0:
		return models.InvalidArgumentf("batchSize must be positive")
	case req.Accuracy < 0 || req.Accuracy > 100:
		return models.InvalidArgumentf("accuracy must be between 0 and 100")
	}
	for _, label := range req.Labels {
		if strings.TrimSpace(label) == "" {
			return models.InvalidArgumentf("labels must not be empty")
		}
	}
	return nil
}
