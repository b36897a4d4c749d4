// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package models

import (
	"errors"
	"strings"
	"testing"
)

func TestErrorHelpers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		sentinel error
		contains string
	}{
		{"not found", NotFoundf("user %q", "yee"), ErrNotFound, `user "yee"`},
		{"invalid argument", InvalidArgumentf("epochs must be positive"), ErrInvalidArgument, "epochs"},
		{"conflict", Conflictf("training %s running", "t1"), ErrConflict, "t1"},
		{"unavailable", Unavailablef("worker down"), ErrUnavailable, "worker"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
			}
			if !strings.Contains(tt.err.Error(), tt.contains) {
				t.Errorf("error %q does not contain %q", tt.err.Error(), tt.contains)
			}
		})
	}
}

func TestTrainingStatusTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status TrainingStatus
		want   bool
	}{
		{TrainingRunning, false},
		{TrainingCompleted, true},
		{TrainingFailed, true},
		{TrainingStopped, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestTrainingLastEpoch(t *testing.T) {
	t.Parallel()

	tr := &Training{}
	if tr.LastEpoch() != 0 {
		t.Errorf("empty history LastEpoch = %d, want 0", tr.LastEpoch())
	}
	tr.History = []EpochMetrics{{Epoch: 1}, {Epoch: 2}, {Epoch: 3}}
	if tr.LastEpoch() != 3 {
		t.Errorf("LastEpoch = %d, want 3", tr.LastEpoch())
	}
}

func TestDatasetHasLabel(t *testing.T) {
	t.Parallel()

	d := &Dataset{Labels: []string{"logP", "solubility"}}
	if !d.HasLabel("logP") {
		t.Error("expected HasLabel(logP) to be true")
	}
	if d.HasLabel("toxicity") {
		t.Error("expected HasLabel(toxicity) to be false")
	}
}
