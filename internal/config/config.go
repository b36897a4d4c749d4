// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
	Database   DatabaseConfig   `koanf:"database"`
	Store      StoreConfig      `koanf:"store"`
	Datasets   DatasetsConfig   `koanf:"datasets"`
	Engine     EngineConfig     `koanf:"engine"`
	Events     EventsConfig     `koanf:"events"`
	Cache      CacheConfig      `koanf:"cache"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int           `koanf:"port"`
	Host        string        `koanf:"host"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"` // development, staging, production
}

// Addr returns host:port for http.Server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SecurityConfig holds CORS and inbound rate limiting.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = runtime.NumCPU()
}

// StoreConfig holds the Badger training store settings.
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// DatasetsConfig controls CSV dataset import.
type DatasetsConfig struct {
	Dir           string `koanf:"dir"`
	HistogramBins int    `koanf:"histogram_bins"`
	Watch         bool   `koanf:"watch"`
}

// EngineConfig controls the ML worker client and training monitor.
type EngineConfig struct {
	WorkerURL         string        `koanf:"worker_url"`
	Timeout           time.Duration `koanf:"timeout"`
	PollInterval      time.Duration `koanf:"poll_interval"`
	MaxRetries        int           `koanf:"max_retries"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
}

// EventsConfig selects the event bus backend. An empty NATSURL keeps
// events in-process.
type EventsConfig struct {
	NATSURL string `koanf:"nats_url"`
	Topic   string `koanf:"topic"`
}

// CacheConfig controls the catalog cache.
type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// SupervisorConfig controls the suture tree.
type SupervisorConfig struct {
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Load reads configuration from defaults, an optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
