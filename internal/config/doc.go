// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

/*
Package config loads and validates MAChINE configuration.

Sources, lowest to highest priority:

 1. Built-in defaults (defaultConfig)
 2. Optional YAML file: $CONFIG_PATH, ./config.yaml, /etc/machine/config.yaml
 3. Environment variables, mapped explicitly in envTransformFunc

Selected environment variables:

  - HTTP_HOST, HTTP_PORT (default 5000), HTTP_TIMEOUT, ENVIRONMENT
  - CORS_ORIGINS (comma-separated), RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - DUCKDB_PATH, DUCKDB_MAX_MEMORY, DUCKDB_THREADS
  - TRAINING_STORE_PATH, TRAINING_STORE_IN_MEMORY
  - DATASETS_DIR, DATASETS_HISTOGRAM_BINS, DATASETS_WATCH
  - ML_WORKER_URL, ML_WORKER_TIMEOUT, ML_POLL_INTERVAL, ML_MAX_RETRIES, ML_REQUESTS_PER_SECOND
  - NATS_URL, EVENTS_TOPIC
  - CACHE_TTL, SHUTDOWN_TIMEOUT

Unknown environment variables are ignored.
*/
package config
