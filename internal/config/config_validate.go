// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that the configuration is complete and within bounds.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateRateLimits,
		c.validateLogging,
		c.validateDatabase,
		c.validateStore,
		c.validateDatasets,
		c.validateEngine,
		c.validateEvents,
		c.validateCache,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if !validEnvironments[c.Server.Environment] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, staging, production")
	}
	return nil
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// IsDevelopment reports whether ENVIRONMENT=development.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// HasWildcardCORS reports whether any origin is allowed. main logs a
// warning for it in production.
func (c *Config) HasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	return nil
}

var (
	validLogLevels  = []string{"trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled"}
	validLogFormats = []string{"json", "console"}
)

func (c *Config) validateLogging() error {
	if !contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("LOG_LEVEL must be one of: %s", strings.Join(validLogLevels, ", "))
	}
	if !contains(validLogFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("LOG_FORMAT must be one of: %s", strings.Join(validLogFormats, ", "))
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must not be negative")
	}
	return nil
}

func (c *Config) validateStore() error {
	if !c.Store.InMemory && c.Store.Path == "" {
		return fmt.Errorf("TRAINING_STORE_PATH is required unless TRAINING_STORE_IN_MEMORY=true")
	}
	return nil
}

const maxHistogramBins = 1000

func (c *Config) validateDatasets() error {
	if c.Datasets.HistogramBins < 1 || c.Datasets.HistogramBins > maxHistogramBins {
		return fmt.Errorf("DATASETS_HISTOGRAM_BINS must be between 1 and %d", maxHistogramBins)
	}
	return nil
}

func (c *Config) validateEngine() error {
	if c.Engine.WorkerURL == "" {
		return fmt.Errorf("ML_WORKER_URL is required")
	}
	if err := validateHTTPURL(c.Engine.WorkerURL, "ML_WORKER_URL"); err != nil {
		return err
	}
	if c.Engine.Timeout <= 0 {
		return fmt.Errorf("ML_WORKER_TIMEOUT must be positive")
	}
	if c.Engine.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("ML_POLL_INTERVAL must be at least 100ms")
	}
	if c.Engine.MaxRetries < 0 || c.Engine.MaxRetries > 10 {
		return fmt.Errorf("ML_MAX_RETRIES must be between 0 and 10")
	}
	if c.Engine.RequestsPerSecond <= 0 {
		return fmt.Errorf("ML_REQUESTS_PER_SECOND must be positive")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.Topic == "" {
		return fmt.Errorf("EVENTS_TOPIC is required")
	}
	if c.Events.NATSURL != "" {
		if err := validateNATSURL(c.Events.NATSURL); err != nil {
			return fmt.Errorf("NATS_URL: %w", err)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.TTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative")
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
