// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package ml

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/machine/internal/logging"
	"github.com/tomtom215/machine/internal/metrics"
	"github.com/tomtom215/machine/internal/models"
)

// WorkerBreakerName labels the worker circuit breaker in metrics.
const WorkerBreakerName = "ml-worker"

// CircuitBreakerWorker wraps a Worker with a circuit breaker so a failing
// worker is not hammered by the monitor and API at the same time.
//
// Requests the worker rejected on their merits (unknown job, bad input) count
// as successes: they prove the worker is up.
type CircuitBreakerWorker struct {
	worker Worker
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// BreakerSettings tunes the breaker. Zero values take the defaults used in
// production.
type BreakerSettings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MinRequests uint32
	FailureRate float64
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.Timeout == 0 {
		s.Timeout = 2 * time.Minute
	}
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRate == 0 {
		s.FailureRate = 0.6
	}
	return s
}

// NewCircuitBreakerWorker guards worker with the default settings:
// 3 probes in half-open, a 1 minute window, 2 minutes open, and tripping at
// a 60% failure rate over at least 10 requests.
func NewCircuitBreakerWorker(worker Worker) *CircuitBreakerWorker {
	return NewCircuitBreakerWorkerWithSettings(worker, BreakerSettings{})
}

// NewCircuitBreakerWorkerWithSettings guards worker with custom settings.
func NewCircuitBreakerWorkerWithSettings(worker Worker, settings BreakerSettings) *CircuitBreakerWorker {
	s := settings.withDefaults()
	cbName := WorkerBreakerName

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= s.FailureRate

			if shouldTrip {
				logging.Warn().
					Str("breaker", cbName).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},

		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
	})

	return &CircuitBreakerWorker{
		worker: worker,
		cb:     cb,
		name:   cbName,
	}
}

// execute runs fn through the breaker. Rejections surface as ErrUnavailable.
func (w *CircuitBreakerWorker) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := w.cb.Execute(fn)

	if err != nil {
		switch {
		case errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.CircuitBreakerRequests.WithLabelValues(w.name, "rejected").Inc()
			logging.Warn().Err(err).Str("breaker", w.name).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, models.Unavailablef("ml worker circuit %s", err)
		case isClientError(err):
			metrics.CircuitBreakerRequests.WithLabelValues(w.name, "success").Inc()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(w.name).Set(0)
		default:
			metrics.CircuitBreakerRequests.WithLabelValues(w.name, "failure").Inc()
			counts := w.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(w.name).Set(float64(counts.ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(w.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(w.name).Set(0)

	return result, nil
}

// SubmitJob implements Worker.
func (w *CircuitBreakerWorker) SubmitJob(ctx context.Context, req *JobRequest) (string, error) {
	result, err := w.execute(func() (interface{}, error) {
		return w.worker.SubmitJob(ctx, req)
	})
	if err != nil {
		return "", err
	}
	jobID, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return jobID, nil
}

// GetJob implements Worker.
func (w *CircuitBreakerWorker) GetJob(ctx context.Context, jobID string) (*JobState, error) {
	return castResult[JobState](w.execute(func() (interface{}, error) {
		return w.worker.GetJob(ctx, jobID)
	}))
}

// CancelJob implements Worker.
func (w *CircuitBreakerWorker) CancelJob(ctx context.Context, jobID string) error {
	_, err := w.execute(func() (interface{}, error) {
		return nil, w.worker.CancelJob(ctx, jobID)
	})
	return err
}

// Predict implements Worker.
func (w *CircuitBreakerWorker) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	return castResult[PredictResponse](w.execute(func() (interface{}, error) {
		return w.worker.Predict(ctx, req)
	}))
}

// Health implements Worker.
func (w *CircuitBreakerWorker) Health(ctx context.Context) error {
	_, err := w.execute(func() (interface{}, error) {
		return nil, w.worker.Health(ctx)
	})
	return err
}

// State returns the breaker state as closed, half-open or open.
func (w *CircuitBreakerWorker) State() string {
	return stateToString(w.cb.State())
}

// Counts returns the breaker's current window counters.
func (w *CircuitBreakerWorker) Counts() gobreaker.Counts {
	return w.cb.Counts()
}

// castResult type-asserts a breaker result.
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
