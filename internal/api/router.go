// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/machine/internal/middleware"
)

// Router wires the handler into a chi route tree.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil middleware factory uses the defaults.
func NewRouter(handler *Handler, chiMiddleware *ChiMiddleware) *Router {
	if chiMiddleware == nil {
		chiMiddleware = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: chiMiddleware}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Applied to all routes in order
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, ErrCodeNotFound, "Resource not found", nil, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed", nil, nil)
	})

	h := router.handler

	// Probes and scraping are not rate limited.
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/check", h.Check)

	r.Group(func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())

		r.Post("/users", h.CreateUser)
		r.Post("/users/{userID}", h.GetOrAddUser)
		r.Delete("/users/{userID}", h.DeleteUser)

		r.Get("/users/{userID}/models", h.GetModels)
		r.Patch("/users/{userID}/models", h.CreateModel)

		r.Get("/users/{userID}/molecules", h.GetMolecules)
		r.Patch("/users/{userID}/molecules", h.AddMolecule)

		r.Get("/users/{userID}/fittings", h.GetFittings)

		r.Post("/users/{userID}/analyze", h.Analyze)

		r.Post("/user/{userID}/train", h.Train)
		r.Post("/users/{userID}/train", h.Train)
		r.Get("/users/{userID}/train", h.TrainingStatus)
		r.Delete("/users/{userID}/train", h.StopTraining)

		r.Get("/datasets", h.GetDatasets)
		r.Get("/datasets/{datasetID}", h.GetDataset)
		r.Get("/datasets/{datasetID}/histograms", h.GetHistograms)

		r.Get("/baseModels", h.GetBaseModels)

		r.Get("/ws", h.WebSocket)
	})

	return r
}
