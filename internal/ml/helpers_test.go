// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package ml

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/machine/internal/config"
	"github.com/tomtom215/machine/internal/models"
)

// fakeWorker is an in-memory ML worker speaking the HTTP job protocol.
type fakeWorker struct {
	mu        sync.Mutex
	jobs      map[string]*JobState
	submitted []JobRequest
	predicted []PredictRequest
	cancelled []string
	results   map[string]float64

	// failNext makes the next n requests answer with failStatus.
	failNext   int
	failStatus int
	retryAfter string
}

func newFakeWorker(t *testing.T) (*fakeWorker, *httptest.Server) {
	t.Helper()
	fw := &fakeWorker{
		jobs:    make(map[string]*JobState),
		results: map[string]float64{"logP": 1.5},
	}
	srv := httptest.NewServer(http.HandlerFunc(fw.serveHTTP))
	t.Cleanup(srv.Close)
	return fw, srv
}

func (fw *fakeWorker) serveHTTP(w http.ResponseWriter, r *http.Request) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.failNext > 0 {
		fw.failNext--
		if fw.retryAfter != "" {
			w.Header().Set("Retry-After", fw.retryAfter)
		}
		http.Error(w, `{"error":"busy"}`, fw.failStatus)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/health":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && r.URL.Path == "/jobs":
		var req JobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.JobID == "" {
			http.Error(w, `{"error":"malformed job"}`, http.StatusBadRequest)
			return
		}
		fw.submitted = append(fw.submitted, req)
		fw.jobs[req.JobID] = &JobState{JobID: req.JobID, Status: JobQueued}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(submitResponse{JobID: req.JobID})
	case strings.HasPrefix(r.URL.Path, "/jobs/"):
		id := strings.TrimPrefix(r.URL.Path, "/jobs/")
		job, ok := fw.jobs[id]
		if !ok {
			http.Error(w, `{"error":"unknown job"}`, http.StatusNotFound)
			return
		}
		if r.Method == http.MethodDelete {
			fw.cancelled = append(fw.cancelled, id)
			job.Status = JobCancelled
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(job)
	case r.Method == http.MethodPost && r.URL.Path == "/predict":
		var req PredictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"malformed request"}`, http.StatusBadRequest)
			return
		}
		fw.predicted = append(fw.predicted, req)
		out := make(map[string]float64, len(req.Labels))
		for _, label := range req.Labels {
			out[label] = fw.results[label]
		}
		_ = json.NewEncoder(w).Encode(PredictResponse{Results: out})
	default:
		http.NotFound(w, r)
	}
}

// setJob replaces the reported state of a job.
func (fw *fakeWorker) setJob(id string, status JobStatus, accuracy float64, epochs ...int) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	job := &JobState{JobID: id, Status: status, Accuracy: accuracy}
	for _, ep := range epochs {
		job.Epochs = append(job.Epochs, models.EpochMetrics{Epoch: ep, Metrics: map[string]float64{"loss": 1 / float64(ep)}})
	}
	fw.jobs[id] = job
}

func (fw *fakeWorker) fail(n, status int, retryAfter string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	fw.failNext = n
	fw.failStatus = status
	fw.retryAfter = retryAfter
}

func newTestClient(url string) *WorkerClient {
	c := NewWorkerClient(&config.EngineConfig{
		WorkerURL:  url,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	})
	c.retryBaseDelay = time.Millisecond
	return c
}

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewTracker(db)
}

// fakeStore is an in-memory Storage.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]bool
	base      map[string]*models.BaseModel
	models    map[string]*models.Model
	datasets  map[string]*models.Dataset
	fittings  map[string]*models.Fitting
	molecules map[string]*models.Molecule
	analyses  []models.Analysis
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[string]bool{"yee": true},
		base: map[string]*models.BaseModel{
			"1": {ID: "1", Name: "Sequential", Type: "sequential", TaskType: "regression",
				Parameters: map[string]interface{}{"lossFunction": "mse", "layers": float64(2)}},
		},
		models: map[string]*models.Model{},
		datasets: map[string]*models.Dataset{
			"solubility": {ID: "solubility", Name: "solubility", Path: "/data/solubility.csv", Labels: []string{"logP", "logS"}},
		},
		fittings: map[string]*models.Fitting{},
		molecules: map[string]*models.Molecule{
			"CCO": {Smiles: "CCO", Name: "ethanol"},
		},
	}
}

func (s *fakeStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.users[userID] {
		return nil, models.NotFoundf("user %s", userID)
	}
	return &models.User{ID: userID}, nil
}

func (s *fakeStore) GetBaseModel(_ context.Context, id string) (*models.BaseModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.base[id]
	if !ok {
		return nil, models.NotFoundf("base model %s", id)
	}
	return b, nil
}

func (s *fakeStore) GetModel(_ context.Context, userID, modelID string) (*models.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.models[userID+"/"+modelID]
	if !ok {
		return nil, models.NotFoundf("model %s", modelID)
	}
	return m, nil
}

func (s *fakeStore) AddModel(_ context.Context, userID string, model *models.Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[userID+"/"+model.ID] = model
	return nil
}

func (s *fakeStore) GetDataset(_ context.Context, id string) (*models.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.datasets[id]
	if !ok {
		return nil, models.NotFoundf("dataset %s", id)
	}
	return d, nil
}

func (s *fakeStore) GetFitting(_ context.Context, userID, fittingID string) (*models.Fitting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.fittings[userID+"/"+fittingID]
	if !ok {
		return nil, models.NotFoundf("fitting %s", fittingID)
	}
	return f, nil
}

func (s *fakeStore) AddFitting(_ context.Context, userID string, fitting *models.Fitting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.models[userID+"/"+fitting.ModelID]; !ok {
		return models.NotFoundf("model %s", fitting.ModelID)
	}
	s.fittings[userID+"/"+fitting.ID] = fitting
	return nil
}

func (s *fakeStore) GetMolecule(_ context.Context, _ string, smiles string) (*models.Molecule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.molecules[smiles]
	if !ok {
		return nil, models.NotFoundf("molecule %s", smiles)
	}
	return m, nil
}

func (s *fakeStore) AddAnalysis(_ context.Context, _ string, moleculeID string, analysis *models.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	analysis.MoleculeID = moleculeID
	s.analyses = append(s.analyses, *analysis)
	return nil
}

func (s *fakeStore) fittingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fittings)
}

// recordingPublisher captures published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.TrainingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event models.TrainingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []models.TrainingEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.TrainingEventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
