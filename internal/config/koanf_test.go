// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Engine.PollInterval != 2*time.Second {
		t.Errorf("Engine.PollInterval = %v, want 2s", cfg.Engine.PollInterval)
	}
	if cfg.Datasets.HistogramBins != 20 {
		t.Errorf("Datasets.HistogramBins = %d, want 20", cfg.Datasets.HistogramBins)
	}
	if cfg.Events.NATSURL != "" {
		t.Errorf("Events.NATSURL = %q, want empty (in-process bus)", cfg.Events.NATSURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"ML_WORKER_URL", "engine.worker_url"},
		{"DUCKDB_PATH", "database.path"},
		{"TRAINING_STORE_PATH", "store.path"},
		{"NATS_URL", "events.nats_url"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

// t.Setenv forbids t.Parallel.
func TestLoadWithKoanf_EnvOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "8080")
	t.Setenv("ML_WORKER_URL", "http://worker:9000")
	t.Setenv("ML_POLL_INTERVAL", "500ms")
	t.Setenv("CORS_ORIGINS", "http://localhost:3000, https://machine.example.com")
	t.Setenv("TRAINING_STORE_IN_MEMORY", "true")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Engine.WorkerURL != "http://worker:9000" {
		t.Errorf("Engine.WorkerURL = %q", cfg.Engine.WorkerURL)
	}
	if cfg.Engine.PollInterval != 500*time.Millisecond {
		t.Errorf("Engine.PollInterval = %v, want 500ms", cfg.Engine.PollInterval)
	}
	wantOrigins := []string{"http://localhost:3000", "https://machine.example.com"}
	if !reflect.DeepEqual(cfg.Security.CORSOrigins, wantOrigins) {
		t.Errorf("CORSOrigins = %v, want %v", cfg.Security.CORSOrigins, wantOrigins)
	}
	if !cfg.Store.InMemory {
		t.Error("Store.InMemory = false, want true")
	}
}

func TestLoadWithKoanf_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 7000
datasets:
  dir: /srv/datasets
  histogram_bins: 10
events:
  nats_url: nats://broker:4222
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Datasets.Dir != "/srv/datasets" || cfg.Datasets.HistogramBins != 10 {
		t.Errorf("Datasets = %+v", cfg.Datasets)
	}
	if cfg.Events.NATSURL != "nats://broker:4222" {
		t.Errorf("Events.NATSURL = %q", cfg.Events.NATSURL)
	}
}

func TestLoadWithKoanf_InvalidEnv(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("HTTP_PORT", "70000")

	if _, err := LoadWithKoanf(); err == nil {
		t.Fatal("expected validation error for HTTP_PORT=70000")
	}
}
