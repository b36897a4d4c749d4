// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/machine/internal/cache"
	"github.com/tomtom215/machine/internal/config"
	"github.com/tomtom215/machine/internal/models"
	ws "github.com/tomtom215/machine/internal/websocket"
)

// call records one collaborator invocation.
type call struct {
	method string
	args   []interface{}
}

// recorder collects calls made to a fake collaborator.
type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) record(method string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{method: method, args: args})
}

func (r *recorder) called(method string) []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []call
	for _, c := range r.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// fakeStorage answers from fixed data and returns err for every call when
// set.
type fakeStorage struct {
	recorder
	err     error
	pingErr error

	usersMu sync.Mutex
	users   map[string]*models.User
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{users: map[string]*models.User{
		"yee": {ID: "yee", Username: "yee"},
	}}
}

func (s *fakeStorage) Ping(context.Context) error {
	return s.pingErr
}

func (s *fakeStorage) GetUser(_ context.Context, userID string) (*models.User, error) {
	s.record("GetUser", userID)
	if s.err != nil {
		return nil, s.err
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, models.NotFoundf("user %q", userID)
	}
	return u, nil
}

func (s *fakeStorage) GetOrAddUser(_ context.Context, userID, username string) (*models.User, error) {
	s.record("GetOrAddUser", userID, username)
	if s.err != nil {
		return nil, s.err
	}
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if u, ok := s.users[userID]; ok {
		return u, nil
	}
	u := &models.User{ID: userID, Username: username}
	s.users[userID] = u
	return u, nil
}

func (s *fakeStorage) DeleteUser(_ context.Context, userID string) error {
	s.record("DeleteUser", userID)
	if s.err != nil {
		return s.err
	}
	s.usersMu.Lock()
	delete(s.users, userID)
	s.usersMu.Unlock()
	return nil
}

func (s *fakeStorage) GetModels(_ context.Context, userID string) ([]models.Model, error) {
	s.record("GetModels", userID)
	if s.err != nil {
		return nil, s.err
	}
	return []models.Model{{ID: "m1", Name: "solubility-net", BaseModelID: "1"}}, nil
}

func (s *fakeStorage) GetBaseModels(context.Context) ([]models.BaseModel, error) {
	s.record("GetBaseModels")
	if s.err != nil {
		return nil, s.err
	}
	return []models.BaseModel{{ID: "1", Name: "Dense", Type: "sequential"}}, nil
}

func (s *fakeStorage) GetFittings(_ context.Context, userID string) ([]models.Fitting, error) {
	s.record("GetFittings", userID)
	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}

func (s *fakeStorage) GetMolecules(_ context.Context, userID string) ([]models.Molecule, error) {
	s.record("GetMolecules", userID)
	if s.err != nil {
		return nil, s.err
	}
	return []models.Molecule{{Smiles: "CCO", Name: "ethanol"}}, nil
}

func (s *fakeStorage) AddMolecule(_ context.Context, userID, smiles, name string) (*models.Molecule, error) {
	s.record("AddMolecule", userID, smiles, name)
	if s.err != nil {
		return nil, s.err
	}
	return &models.Molecule{Smiles: smiles, Name: name}, nil
}

func (s *fakeStorage) GetDatasetsInfo(context.Context) ([]models.Dataset, error) {
	s.record("GetDatasetsInfo")
	if s.err != nil {
		return nil, s.err
	}
	return []models.Dataset{{ID: "solubility", Name: "solubility", Size: 3, Labels: []string{"logP", "logS"}}}, nil
}

func (s *fakeStorage) GetDataset(_ context.Context, id string) (*models.Dataset, error) {
	s.record("GetDataset", id)
	if s.err != nil {
		return nil, s.err
	}
	if id != "solubility" {
		return nil, models.NotFoundf("dataset %q", id)
	}
	return &models.Dataset{ID: id, Name: id, Labels: []string{"logP", "logS"}}, nil
}

func (s *fakeStorage) GetHistograms(_ context.Context, datasetID string, labels []string) ([]models.Histogram, error) {
	s.record("GetHistograms", datasetID, labels)
	if s.err != nil {
		return nil, s.err
	}
	return []models.Histogram{{Label: "logP"}}, nil
}

// fakeEngine records engine calls.
type fakeEngine struct {
	recorder
	err       error
	readyErr  error
	forgetErr error
}

func (e *fakeEngine) CreateModel(_ context.Context, userID string, spec models.ModelSpec) (*models.Model, error) {
	e.record("CreateModel", userID, spec)
	if e.err != nil {
		return nil, e.err
	}
	return &models.Model{ID: "m2", Name: spec.Name, BaseModelID: spec.BaseModelID, Parameters: spec.Parameters}, nil
}

func (e *fakeEngine) Train(_ context.Context, userID string, req models.TrainingRequest) (*models.Training, error) {
	e.record("Train", userID, req)
	if e.err != nil {
		return nil, e.err
	}
	return &models.Training{ID: "t1", UserID: userID, ModelID: req.ModelID, Status: models.TrainingRunning}, nil
}

func (e *fakeEngine) TrainingStatus(_ context.Context, userID string) (*models.Training, error) {
	e.record("TrainingStatus", userID)
	if e.err != nil {
		return nil, e.err
	}
	return &models.Training{ID: "t1", UserID: userID, Status: models.TrainingRunning}, nil
}

func (e *fakeEngine) StopTraining(_ context.Context, userID string) (*models.Training, error) {
	e.record("StopTraining", userID)
	if e.err != nil {
		return nil, e.err
	}
	return &models.Training{ID: "t1", UserID: userID, Status: models.TrainingStopped}, nil
}

func (e *fakeEngine) ForgetUser(_ context.Context, userID string) error {
	e.record("ForgetUser", userID)
	return e.forgetErr
}

func (e *fakeEngine) Analyze(_ context.Context, userID, fittingID, moleculeID string) (*models.Analysis, error) {
	e.record("Analyze", userID, fittingID, moleculeID)
	if e.err != nil {
		return nil, e.err
	}
	return &models.Analysis{
		ID:         "a1",
		MoleculeID: moleculeID,
		FittingID:  fittingID,
		Results:    map[string]float64{"logP": 1.5},
	}, nil
}

func (e *fakeEngine) Ready() error {
	return e.readyErr
}

// testEnv bundles a router with its fakes.
type testEnv struct {
	store   *fakeStorage
	engine  *fakeEngine
	handler *Handler
	server  http.Handler
}

type envOption func(*testEnv, *config.Config)

func withHub(hub *ws.Hub) envOption {
	return func(e *testEnv, _ *config.Config) { e.handler.hub = hub }
}

func withCatalog(c *cache.Cache) envOption {
	return func(e *testEnv, _ *config.Config) { e.handler.catalog = c }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := &config.Config{}
	env := &testEnv{store: newFakeStorage(), engine: &fakeEngine{}}
	env.handler = NewHandler(env.store, env.engine, nil, nil, cfg)
	for _, opt := range opts {
		opt(env, cfg)
	}

	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		RateLimitDisabled:  true,
	})
	env.server = NewRouter(env.handler, mw).SetupChi()
	return env
}

// do sends a request through the router. A map body is sent as JSON, a
// string body as form data.
func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = strings.NewReader(string(data))
		contentType = "application/json"
	}

	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *APIError {
	t.Helper()
	var resp ErrorResponse
	decodeBody(t, w, &resp)
	if resp.Success {
		t.Fatalf("error response has success=true: %s", w.Body.String())
	}
	if resp.Error == nil {
		t.Fatalf("error response without error object: %s", w.Body.String())
	}
	return resp.Error
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, want, w.Body.String())
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: %s", msg)
}

func newRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
