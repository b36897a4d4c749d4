// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package ml

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/machine/internal/config"
	"github.com/tomtom215/machine/internal/logging"
	"github.com/tomtom215/machine/internal/metrics"
	"github.com/tomtom215/machine/internal/models"
)

// maxErrorBody bounds how much of a worker error response is read.
const maxErrorBody = 4096

// JobStatus is the state reported by the ML worker for a job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// JobRequest is the body of POST /jobs.
type JobRequest struct {
	JobID       string            `json:"jobID"`
	FittingID   string            `json:"fittingID"`
	UserID      string            `json:"userID"`
	DatasetID   string            `json:"datasetID"`
	DatasetPath string            `json:"datasetPath"`
	Model       models.Model      `json:"model"`
	BaseModel   models.BaseModel  `json:"baseModel"`
	Fingerprint string            `json:"fingerprint"`
	Labels      []string          `json:"labels"`
	Epochs      int               `json:"epochs"`
	BatchSize   int               `json:"batchSize"`
	Accuracy    float64           `json:"accuracy"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// JobState is the body of GET /jobs/{jobID}.
type JobState struct {
	JobID    string                `json:"jobID"`
	Status   JobStatus             `json:"status"`
	Epochs   []models.EpochMetrics `json:"epochs"`
	Accuracy float64               `json:"accuracy"`
	Error    string                `json:"error,omitempty"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	FittingID   string   `json:"fittingID"`
	Smiles      string   `json:"smiles"`
	Fingerprint string   `json:"fingerprint"`
	Labels      []string `json:"labels"`
}

// PredictResponse carries one predicted value per label.
type PredictResponse struct {
	Results map[string]float64 `json:"results"`
}

type submitResponse struct {
	JobID string `json:"jobID"`
}

type workerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Worker is the ML worker surface used by the engine. WorkerClient talks
// HTTP; CircuitBreakerWorker guards any Worker.
type Worker interface {
	SubmitJob(ctx context.Context, req *JobRequest) (string, error)
	GetJob(ctx context.Context, jobID string) (*JobState, error)
	CancelJob(ctx context.Context, jobID string) error
	Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error)
	Health(ctx context.Context) error
}

// WorkerClient is the HTTP client for the ML worker.
type WorkerClient struct {
	baseURL        string
	client         *http.Client
	limiter        *rate.Limiter
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewWorkerClient creates a client for cfg.WorkerURL. Each request is bounded
// by cfg.Timeout and throttled to cfg.RequestsPerSecond.
func NewWorkerClient(cfg *config.EngineConfig) *WorkerClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &WorkerClient{
		baseURL:        strings.TrimRight(cfg.WorkerURL, "/"),
		client:         &http.Client{Timeout: timeout},
		limiter:        rate.NewLimiter(limit, burst),
		maxRetries:     cfg.MaxRetries,
		retryBaseDelay: 500 * time.Millisecond,
	}
}

// SubmitJob starts a training job and returns the worker's job ID.
func (c *WorkerClient) SubmitJob(ctx context.Context, req *JobRequest) (string, error) {
	var resp submitResponse
	if err := c.doJSON(ctx, "submit_job", http.MethodPost, "/jobs", req, &resp); err != nil {
		return "", err
	}
	if resp.JobID == "" {
		return req.JobID, nil
	}
	return resp.JobID, nil
}

// GetJob fetches the current state of a job.
func (c *WorkerClient) GetJob(ctx context.Context, jobID string) (*JobState, error) {
	var state JobState
	if err := c.doJSON(ctx, "get_job", http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// CancelJob asks the worker to stop a job.
func (c *WorkerClient) CancelJob(ctx context.Context, jobID string) error {
	return c.doJSON(ctx, "cancel_job", http.MethodDelete, "/jobs/"+url.PathEscape(jobID), nil, nil)
}

// Predict runs a trained fitting against one molecule.
func (c *WorkerClient) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	var resp PredictResponse
	if err := c.doJSON(ctx, "predict", http.MethodPost, "/predict", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health checks that the worker answers.
func (c *WorkerClient) Health(ctx context.Context) error {
	return c.doJSON(ctx, "health", http.MethodGet, "/health", nil, nil)
}

// doJSON sends body as JSON and decodes a 2xx response into out.
func (c *WorkerClient) doJSON(ctx context.Context, operation, method, path string, body, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerRequest(operation, time.Since(start), err)
	}()

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", operation, err)
		}
	}

	resp, err := c.doRequestWithRetry(ctx, operation, method, c.baseURL+path, payload)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logging.Debug().Err(cerr).Str("operation", operation).Msg("Failed to close worker response body")
		}
	}()

	if resp.StatusCode >= 300 {
		return statusError(operation, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}

// doRequestWithRetry performs the request with exponential backoff on 429
// and 503. A Retry-After header in seconds overrides the computed delay.
func (c *WorkerClient) doRequestWithRetry(ctx context.Context, operation, method, reqURL string, payload []byte) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reqBody io.Reader = http.NoBody
		if payload != nil {
			reqBody = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if requestID := logging.RequestIDFromContext(ctx); requestID != "" {
			req.Header.Set("X-Request-ID", requestID)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, models.Unavailablef("ml worker unreachable: %v", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusServiceUnavailable {
			return resp, nil
		}

		_ = resp.Body.Close()

		if attempt == c.maxRetries {
			lastErr = models.Unavailablef("ml worker busy after %d retries (HTTP %d)", c.maxRetries, resp.StatusCode)
			break
		}

		delay := c.retryBaseDelay * time.Duration(1<<uint(attempt))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				delay = seconds
			}
		}

		metrics.WorkerRetries.WithLabelValues(operation).Inc()
		logging.Debug().
			Str("operation", operation).
			Int("status", resp.StatusCode).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("ML worker asked to back off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, lastErr
}

// statusError maps a non-2xx worker response onto the domain errors.
func statusError(operation string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var werr workerError
	if json.Unmarshal(raw, &werr) == nil {
		switch {
		case werr.Message != "":
			msg = werr.Message
		case werr.Error != "":
			msg = werr.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return models.NotFoundf("ml worker %s: %s", operation, msg)
	case resp.StatusCode == http.StatusConflict:
		return models.Conflictf("ml worker %s: %s", operation, msg)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return models.InvalidArgumentf("ml worker %s: %s", operation, msg)
	case resp.StatusCode == http.StatusBadGateway || resp.StatusCode == http.StatusGatewayTimeout:
		return models.Unavailablef("ml worker %s: %s", operation, msg)
	default:
		return fmt.Errorf("ml worker %s failed with HTTP %d: %s", operation, resp.StatusCode, msg)
	}
}

// isClientError reports errors caused by the request rather than the worker.
func isClientError(err error) bool {
	return errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInvalidArgument) ||
		errors.Is(err, models.ErrConflict) ||
		errors.Is(err, context.Canceled)
}
