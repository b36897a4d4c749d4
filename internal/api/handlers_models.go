// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"net/http"

	"github.com/tomtom215/machine/internal/models"
)

type createModelRequest struct {
	Name       string                 `json:"name" validate:"required,max=200"`
	BaseModel  string                 `json:"baseModel" validate:"required,resource_id"`
	Parameters map[string]interface{} `json:"parameters"`
}

// GetModels handles GET /users/{userID}/models.
func (h *Handler) GetModels(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	list, err := h.store.GetModels(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Model{}
	}
	respondJSON(w, http.StatusOK, list)
}

// CreateModel handles PATCH /users/{userID}/models.
func (h *Handler) CreateModel(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	args, ok := parseArgs(w, r)
	if !ok {
		return
	}

	req := createModelRequest{Name: args.Name, BaseModel: args.BaseModel, Parameters: args.Parameters}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	model, err := h.engine.CreateModel(r.Context(), userID, models.ModelSpec{
		Name:        req.Name,
		BaseModelID: req.BaseModel,
		Parameters:  req.Parameters,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, model)
}

// GetFittings handles GET /users/{userID}/fittings.
func (h *Handler) GetFittings(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	list, err := h.store.GetFittings(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Fitting{}
	}
	respondJSON(w, http.StatusOK, list)
}

// GetBaseModels handles GET /baseModels.
func (h *Handler) GetBaseModels(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.cached(cacheKeyBaseModels); ok {
		respondJSON(w, http.StatusOK, v)
		return
	}

	list, err := h.store.GetBaseModels(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []models.BaseModel{}
	}
	h.remember(cacheKeyBaseModels, list)
	respondJSON(w, http.StatusOK, list)
}
