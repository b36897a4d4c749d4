// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"net/http"

	"github.com/tomtom215/machine/internal/models"
)

type trainRequest struct {
	DatasetID   string   `json:"datasetID" validate:"required,resource_id"`
	ModelID     string   `json:"modelID" validate:"required,resource_id"`
	Fingerprint string   `json:"fingerprint" validate:"required,max=100"`
	Labels      []string `json:"label" validate:"required,min=1,dive,required"`
	Epochs      int      `json:"epochs" validate:"required,gt=0"`
	BatchSize   int      `json:"batchSize" validate:"required,gt=0"`
	Accuracy    float64  `json:"accuracy" validate:"gte=0,lte=100"`
}

// Train handles POST /user/{userID}/train and its plural alias. The
// training runs asynchronously; the response is the accepted training.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	args, ok := parseArgs(w, r)
	if !ok {
		return
	}

	req := trainRequest{
		DatasetID:   args.DatasetID,
		ModelID:     args.ModelID,
		Fingerprint: args.Fingerprint,
		Labels:      args.Labels,
		Epochs:      args.Epochs,
		BatchSize:   args.BatchSize,
		Accuracy:    args.Accuracy,
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	training, err := h.engine.Train(r.Context(), userID, models.TrainingRequest{
		DatasetID:   req.DatasetID,
		ModelID:     req.ModelID,
		Fingerprint: req.Fingerprint,
		Labels:      req.Labels,
		Epochs:      req.Epochs,
		Accuracy:    req.Accuracy,
		BatchSize:   req.BatchSize,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, training)
}

// TrainingStatus handles GET /users/{userID}/train.
func (h *Handler) TrainingStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	training, err := h.engine.TrainingStatus(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, training)
}

// StopTraining handles DELETE /users/{userID}/train.
func (h *Handler) StopTraining(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	training, err := h.engine.StopTraining(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, training)
}
