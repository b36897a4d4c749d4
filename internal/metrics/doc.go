// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

/*
Package metrics provides Prometheus collectors for the MAChINE server.

All collectors are registered on the default registry through promauto and
exposed at /metrics by the API router:

	curl http://localhost:5000/metrics

# Available Metrics

API:
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests
  - api_rate_limit_hits_total{endpoint}

Storage:
  - duckdb_query_duration_seconds{operation,table}
  - duckdb_query_errors_total{operation,table,error_type}
  - dataset_imports_total{result}

ML engine:
  - ml_worker_requests_total{operation,status}
  - ml_worker_request_duration_seconds{operation}
  - ml_worker_retries_total{operation}
  - trainings_active, trainings_started_total, trainings_finished_total{status}
  - training_epochs_total, analyses_total{result}
  - circuit_breaker_state{name}, circuit_breaker_requests_total{name,result}

Events and realtime:
  - events_published_total{type}, events_consumed_total{type}
  - websocket_connections_active, websocket_messages_sent_total

Cache:
  - cache_hits_total{cache_type}, cache_misses_total{cache_type}, cache_entries{cache_type}
*/
package metrics
