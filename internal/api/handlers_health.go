// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"context"
	"net/http"
	"time"
)

// readyTimeout bounds the dependency checks of the readiness probe.
const readyTimeout = 2 * time.Second

// Check handles GET /check, the heartbeat the web client polls.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// HealthLive handles liveness probe requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests. It returns 200 only when
// the database answers, the engine can accept work and the server is not
// shutting down.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	dbConnected := h.store != nil && h.store.Ping(ctx) == nil

	engineReady := false
	engineStatus := "unavailable"
	if h.engine != nil {
		if err := h.engine.Ready(); err != nil {
			engineStatus = err.Error()
		} else {
			engineReady = true
			engineStatus = "ready"
		}
	}

	draining := h.draining.Load()
	ready := dbConnected && engineReady && !draining
	statusCode := http.StatusOK
	status := "ready"
	switch {
	case draining:
		statusCode = http.StatusServiceUnavailable
		status = "draining"
	case !ready:
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	body := map[string]interface{}{
		"status":             status,
		"database_connected": dbConnected,
		"engine":             engineStatus,
		"uptime":             time.Since(h.startTime).Seconds(),
	}
	if h.hub != nil {
		body["websocket_clients"] = h.hub.GetClientCount()
	}
	respondJSON(w, statusCode, body)
}
