// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/machine/internal/api"
	"github.com/tomtom215/machine/internal/cache"
	"github.com/tomtom215/machine/internal/config"
	"github.com/tomtom215/machine/internal/database"
	"github.com/tomtom215/machine/internal/events"
	"github.com/tomtom215/machine/internal/logging"
	"github.com/tomtom215/machine/internal/metrics"
	"github.com/tomtom215/machine/internal/ml"
	"github.com/tomtom215/machine/internal/supervisor"
	"github.com/tomtom215/machine/internal/supervisor/services"
	ws "github.com/tomtom215/machine/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)

	logging.Info().
		Str("version", version).
		Str("db_path", cfg.Database.Path).
		Str("datasets_dir", cfg.Datasets.Dir).
		Str("worker_url", cfg.Engine.WorkerURL).
		Msg("Starting MAChINE with supervisor tree")

	// Storage handler
	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	importDatasets(db, cfg)

	// Training tracker
	tracker, err := ml.OpenTracker(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open training store")
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing training store")
		}
	}()

	// Training events
	bus, err := events.NewBus(eventsConfig(cfg), logging.NewWatermillAdapter())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()
	logging.Info().Str("backend", bus.Backend()).Str("topic", bus.Topic()).Msg("Event bus initialized")

	// ML engine: worker client behind a circuit breaker
	worker := ml.NewCircuitBreakerWorker(ml.NewWorkerClient(&cfg.Engine))
	if err := worker.Health(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("ML worker not reachable yet (will retry per request)")
	}
	engine := ml.NewEngine(db, worker, tracker, bus)

	wsHub := ws.NewHub()

	catalog := cache.New("catalog", cfg.Cache.TTL)
	defer catalog.Close()

	handler := api.NewHandler(db, engine, wsHub, catalog, cfg)
	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromSecurity(&cfg.Security)))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	// === ADD SERVICES TO SUPERVISOR TREE ===

	// Data layer
	if cfg.Datasets.Watch {
		tree.AddDataService(services.NewDatasetWatcher(cfg.Datasets.Dir, cfg.Datasets.HistogramBins, db, handler.InvalidateCatalog))
		logging.Info().Str("dir", cfg.Datasets.Dir).Msg("Dataset watcher added to supervisor tree")
	}

	// Engine layer
	tree.AddEngineService(wsHub)
	tree.AddEngineService(ws.NewEventForwarder(wsHub, bus))
	tree.AddEngineService(ml.NewMonitor(engine, cfg.Engine.PollInterval))
	logging.Info().Msg("WebSocket hub, event forwarder and training monitor added to supervisor tree")

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Supervisor.ShutdownTimeout).OnDrain(handler.BeginDrain))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// === START SUPERVISOR TREE ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	if err := db.Checkpoint(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("Final database checkpoint failed")
	}
	logging.Info().Msg("Application stopped gracefully")
}

// importDatasets loads every CSV in the datasets directory. Failures are
// logged; the server still starts with whatever was imported earlier.
func importDatasets(db *database.DB, cfg *config.Config) {
	if cfg.Datasets.Dir == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	imported, err := db.ImportDatasetDir(ctx, cfg.Datasets.Dir, cfg.Datasets.HistogramBins)
	if err != nil {
		logging.Warn().Err(err).Str("dir", cfg.Datasets.Dir).Msg("Dataset import incomplete")
	}
	logging.Info().Int("count", len(imported)).Str("dir", cfg.Datasets.Dir).Msg("Datasets imported")
}

// eventsConfig maps the application config onto the event bus defaults.
func eventsConfig(cfg *config.Config) events.Config {
	ec := events.DefaultConfig()
	ec.NATSURL = cfg.Events.NATSURL
	if cfg.Events.Topic != "" {
		ec.Topic = cfg.Events.Topic
	}
	return ec
}
