// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/machine/internal/cache"
	"github.com/tomtom215/machine/internal/models"
)

func TestTrain_MalformedNumericsSkipEngine(t *testing.T) {
	t.Parallel()

	base := func() map[string]interface{} {
		return map[string]interface{}{
			"datasetID":   "solubility",
			"modelID":     "m1",
			"fingerprint": "morgan",
			"label":       "logP",
			"epochs":      "10",
			"accuracy":    "90",
			"batchSize":   "32",
		}
	}

	tests := []struct {
		field string
		value interface{}
	}{
		{"epochs", "ten"},
		{"epochs", -1},
		{"batchSize", "1e3"},
		{"batchSize", 0},
		{"accuracy", "150"},
		{"accuracy", "NaN"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s=%v", tt.field, tt.value), func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			body := base()
			body[tt.field] = tt.value

			w := env.do(t, http.MethodPost, "/user/yee/train", body)
			expectStatus(t, w, http.StatusBadRequest)
			if got := decodeError(t, w); got.Code != ErrCodeInvalidArgument {
				t.Errorf("code = %q, want %q", got.Code, ErrCodeInvalidArgument)
			}
			if n := len(env.engine.called("Train")); n != 0 {
				t.Errorf("Train called %d times, want 0", n)
			}
		})
	}
}

func TestTrain_MissingFieldsFailValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/user/yee/train", map[string]interface{}{"datasetID": "solubility"})
	expectStatus(t, w, http.StatusBadRequest)

	apiErr := decodeError(t, w)
	if apiErr.Code != ErrCodeValidation {
		t.Errorf("code = %q, want %q", apiErr.Code, ErrCodeValidation)
	}
	if apiErr.Details == nil {
		t.Error("validation errors should carry details")
	}
	if n := len(env.engine.called("Train")); n != 0 {
		t.Errorf("Train called %d times, want 0", n)
	}
}

func TestAnalyze_RequiresIDs(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/users/yee/analyze", map[string]string{"fittingID": "aaah"})
	expectStatus(t, w, http.StatusBadRequest)
	if got := decodeError(t, w); got.Code != ErrCodeValidation {
		t.Errorf("code = %q, want %q", got.Code, ErrCodeValidation)
	}
}

func TestAnalyze_FormArguments(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(t, http.MethodPost, "/users/yee/analyze", "fittingID=aaah&moleculeID=m1")
	expectStatus(t, w, http.StatusOK)

	var analysis models.Analysis
	decodeBody(t, w, &analysis)
	if analysis.FittingID != "aaah" || analysis.MoleculeID != "m1" {
		t.Errorf("analysis = %+v", analysis)
	}
}

func TestDomainErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"not found", models.NotFoundf("user %q", "ghost"), http.StatusNotFound, ErrCodeNotFound, `user "ghost": not found`},
		{"invalid", models.InvalidArgumentf("label %q not in dataset", "x"), http.StatusBadRequest, ErrCodeInvalidArgument, `label "x" not in dataset: invalid argument`},
		{"conflict", models.Conflictf("training already running"), http.StatusConflict, ErrCodeConflict, "training already running: conflict"},
		{"unavailable", models.Unavailablef("circuit open"), http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "circuit open: unavailable"},
		{"internal", errors.New("duckdb: disk I/O error"), http.StatusInternalServerError, ErrCodeInternalError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.engine.err = tt.err

			w := env.do(t, http.MethodPost, "/users/yee/analyze", map[string]string{"fittingID": "f1", "moleculeID": "CCO"})
			expectStatus(t, w, tt.status)
			got := decodeError(t, w)
			if got.Code != tt.code {
				t.Errorf("code = %q, want %q", got.Code, tt.code)
			}
			if got.Message != tt.message {
				t.Errorf("message = %q, want %q", got.Message, tt.message)
			}
		})
	}
}

func TestStorageErrorsMapped(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.store.err = models.NotFoundf("user %q", "ghost")

	w := env.do(t, http.MethodGet, "/users/ghost/models", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestAddMolecule(t *testing.T) {
	t.Parallel()

	t.Run("moleculeID alias", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		w := env.do(t, http.MethodPatch, "/users/yee/molecules", map[string]string{"moleculeID": "c1ccccc1"})
		expectStatus(t, w, http.StatusOK)

		calls := env.store.called("AddMolecule")
		if len(calls) != 1 || calls[0].args[1] != "c1ccccc1" {
			t.Errorf("AddMolecule calls = %+v", calls)
		}
	})

	t.Run("invalid smiles", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		w := env.do(t, http.MethodPatch, "/users/yee/molecules", map[string]string{"smiles": "C(C"})
		expectStatus(t, w, http.StatusBadRequest)
		if n := len(env.store.called("AddMolecule")); n != 0 {
			t.Errorf("AddMolecule called %d times, want 0", n)
		}
	})

	t.Run("missing smiles", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t)
		w := env.do(t, http.MethodPatch, "/users/yee/molecules", nil)
		expectStatus(t, w, http.StatusBadRequest)
	})
}

func TestCreateModel(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(t, http.MethodPatch, "/users/yee/models", map[string]interface{}{
		"name":       "solubility-net",
		"baseModel":  "1",
		"parameters": map[string]interface{}{"units_per_layer": 256, "optimizer": "Adam"},
	})
	expectStatus(t, w, http.StatusOK)

	calls := env.engine.called("CreateModel")
	if len(calls) != 1 {
		t.Fatalf("CreateModel calls = %d, want 1", len(calls))
	}
	spec := calls[0].args[1].(models.ModelSpec)
	if spec.Name != "solubility-net" || spec.BaseModelID != "1" {
		t.Errorf("spec = %+v", spec)
	}
	if fmt.Sprint(spec.Parameters["units_per_layer"]) != "256" || spec.Parameters["optimizer"] != "Adam" {
		t.Errorf("parameters = %v", spec.Parameters)
	}

	w = env.do(t, http.MethodPatch, "/users/yee/models", map[string]interface{}{"baseModel": "1"})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestCreateUser_RequiresUsername(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	tests := []struct {
		name string
		body interface{}
	}{
		{"missing", nil},
		{"empty", map[string]string{"username": ""}},
		{"not a path segment", map[string]string{"username": "a/b"}},
	}
	for _, tt := range tests {
		w := env.do(t, http.MethodPost, "/users", tt.body)
		expectStatus(t, w, http.StatusBadRequest)
		if got := decodeError(t, w); got.Code != ErrCodeValidation {
			t.Errorf("%s: code = %q, want %q", tt.name, got.Code, ErrCodeValidation)
		}
	}
	if n := len(env.store.called("GetOrAddUser")); n != 0 {
		t.Errorf("GetOrAddUser calls = %d, want 0", n)
	}
}

func TestCreateUser_SameUsernameSameUser(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	var ids []string
	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodPost, "/users", map[string]string{"username": "alice"})
		expectStatus(t, w, http.StatusOK)
		var resp createUserResponse
		decodeBody(t, w, &resp)
		ids = append(ids, resp.UserID)
	}

	if ids[0] != "alice" || ids[1] != "alice" {
		t.Errorf("userIDs = %v, want [alice alice]", ids)
	}

	// The login ID addresses the user's resources.
	w := env.do(t, http.MethodGet, "/users/alice/models", nil)
	expectStatus(t, w, http.StatusOK)
}

func TestDeleteUser_StopsTrainingFirst(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.engine.err = models.NotFoundf("no training")

	w := env.do(t, http.MethodDelete, "/users/yee", nil)
	expectStatus(t, w, http.StatusNoContent)

	if n := len(env.engine.called("StopTraining")); n != 1 {
		t.Errorf("StopTraining calls = %d, want 1", n)
	}
	if n := len(env.store.called("DeleteUser")); n != 1 {
		t.Errorf("DeleteUser calls = %d, want 1", n)
	}
	forgot := env.engine.called("ForgetUser")
	if len(forgot) != 1 || forgot[0].args[0] != "yee" {
		t.Errorf("ForgetUser calls = %v, want one for yee", forgot)
	}
}

func TestDeleteUser_TrainingRecordErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		storeErr   error
		forgetErr  error
		wantStatus int
		wantForget int
	}{
		{"storage fails", errors.New("disk full"), nil, http.StatusInternalServerError, 0},
		{"user already gone", models.NotFoundf("user %q", "yee"), nil, http.StatusNotFound, 1},
		{"forget fails", nil, errors.New("badger closed"), http.StatusInternalServerError, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.store.err = tt.storeErr
			env.engine.forgetErr = tt.forgetErr

			w := env.do(t, http.MethodDelete, "/users/yee", nil)
			expectStatus(t, w, tt.wantStatus)
			if n := len(env.engine.called("ForgetUser")); n != tt.wantForget {
				t.Errorf("ForgetUser calls = %d, want %d", n, tt.wantForget)
			}
		})
	}
}

func TestPathUserIDValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/users/bad%5Cid/models", nil)
	expectStatus(t, w, http.StatusBadRequest)
	if env.store.count() != 0 {
		t.Error("storage should not be called for an invalid user id")
	}
}

func TestCatalogCache(t *testing.T) {
	t.Parallel()

	catalog := cache.New("catalog-test", time.Minute)
	t.Cleanup(catalog.Close)
	env := newTestEnv(t, withCatalog(catalog))

	for i := 0; i < 3; i++ {
		expectStatus(t, env.do(t, http.MethodGet, "/datasets", nil), http.StatusOK)
		expectStatus(t, env.do(t, http.MethodGet, "/baseModels", nil), http.StatusOK)
	}
	if n := len(env.store.called("GetDatasetsInfo")); n != 1 {
		t.Errorf("GetDatasetsInfo calls = %d, want 1", n)
	}
	if n := len(env.store.called("GetBaseModels")); n != 1 {
		t.Errorf("GetBaseModels calls = %d, want 1", n)
	}

	env.handler.InvalidateCatalog()
	expectStatus(t, env.do(t, http.MethodGet, "/datasets", nil), http.StatusOK)
	if n := len(env.store.called("GetDatasetsInfo")); n != 2 {
		t.Errorf("GetDatasetsInfo calls after invalidation = %d, want 2", n)
	}
	if n := len(env.store.called("GetBaseModels")); n != 1 {
		t.Errorf("base models should stay cached, calls = %d", n)
	}
}

func TestGetDataset_NotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/datasets/unknown", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestCheck(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/check", nil)
	expectStatus(t, w, http.StatusOK)

	var body map[string]interface{}
	decodeBody(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		pingErr  error
		readyErr error
		want     int
	}{
		{"ready", nil, nil, http.StatusOK},
		{"database down", errors.New("closed"), nil, http.StatusServiceUnavailable},
		{"breaker open", nil, models.Unavailablef("circuit open"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t)
			env.store.pingErr = tt.pingErr
			env.engine.readyErr = tt.readyErr

			expectStatus(t, env.do(t, http.MethodGet, "/health/live", nil), http.StatusOK)
			w := env.do(t, http.MethodGet, "/health/ready", nil)
			expectStatus(t, w, tt.want)
		})
	}
}

func TestHealthReady_Draining(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	expectStatus(t, env.do(t, http.MethodGet, "/health/ready", nil), http.StatusOK)

	env.handler.BeginDrain()
	w := env.do(t, http.MethodGet, "/health/ready", nil)
	expectStatus(t, w, http.StatusServiceUnavailable)
	var body map[string]interface{}
	decodeBody(t, w, &body)
	if body["status"] != "draining" {
		t.Errorf("status = %v, want draining", body["status"])
	}

	// Liveness is unaffected.
	expectStatus(t, env.do(t, http.MethodGet, "/health/live", nil), http.StatusOK)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/baseModels", nil)

	w := env.do(t, http.MethodGet, "/metrics", nil)
	expectStatus(t, w, http.StatusOK)
	if w.Body.Len() == 0 {
		t.Error("metrics body is empty")
	}
}

func TestRecovererReturns500(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.handler.store = nil // GetModels dereferences a nil interface

	w := env.do(t, http.MethodGet, "/users/yee/models", nil)
	expectStatus(t, w, http.StatusInternalServerError)
}
