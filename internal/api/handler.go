// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"sync/atomic"
	"time"

	"github.com/tomtom215/machine/internal/cache"
	"github.com/tomtom215/machine/internal/config"
	ws "github.com/tomtom215/machine/internal/websocket"
)

// Catalog cache keys.
const (
	cacheKeyDatasets   = "datasets"
	cacheKeyBaseModels = "baseModels"
)

// Handler holds the collaborators every resource delegates to.
type Handler struct {
	store     Storage
	engine    Engine
	hub       *ws.Hub
	catalog   *cache.Cache
	config    *config.Config
	startTime time.Time

	// draining is set once shutdown begins; readiness fails from then on.
	draining atomic.Bool
}

// NewHandler creates a handler. hub and catalog may be nil; without a hub
// the websocket endpoint is unavailable and without a catalog cache every
// catalog request reads storage.
func NewHandler(store Storage, engine Engine, hub *ws.Hub, catalog *cache.Cache, cfg *config.Config) *Handler {
	return &Handler{
		store:     store,
		engine:    engine,
		hub:       hub,
		catalog:   catalog,
		config:    cfg,
		startTime: time.Now(),
	}
}

// BeginDrain marks the server as shutting down. The HTTP service calls it
// before it stops accepting connections.
func (h *Handler) BeginDrain() {
	h.draining.Store(true)
}

// InvalidateCatalog drops cached dataset listings. The dataset watcher
// calls it after an import.
func (h *Handler) InvalidateCatalog() {
	if h.catalog != nil {
		h.catalog.DeletePrefix(cacheKeyDatasets)
	}
}

func (h *Handler) cached(key string) (interface{}, bool) {
	if h.catalog == nil {
		return nil, false
	}
	return h.catalog.Get(key)
}

func (h *Handler) remember(key string, value interface{}) {
	if h.catalog != nil {
		h.catalog.Set(key, value)
	}
}
