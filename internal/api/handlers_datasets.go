// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/machine/internal/models"
)

type datasetPath struct {
	DatasetID string `json:"datasetID" validate:"required,resource_id,max=256"`
}

func pathDatasetID(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := datasetPath{DatasetID: chi.URLParam(r, "datasetID")}
	if apiErr := validateRequest(&p); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return "", false
	}
	return p.DatasetID, true
}

// GetDatasets handles GET /datasets.
func (h *Handler) GetDatasets(w http.ResponseWriter, r *http.Request) {
	if v, ok := h.cached(cacheKeyDatasets); ok {
		respondJSON(w, http.StatusOK, v)
		return
	}

	list, err := h.store.GetDatasetsInfo(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Dataset{}
	}
	h.remember(cacheKeyDatasets, list)
	respondJSON(w, http.StatusOK, list)
}

// GetDataset handles GET /datasets/{datasetID}.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := pathDatasetID(w, r)
	if !ok {
		return
	}

	dataset, err := h.store.GetDataset(r.Context(), datasetID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, dataset)
}

// GetHistograms handles GET /datasets/{datasetID}/histograms. The labels
// query parameter narrows the result; without it every label is returned.
func (h *Handler) GetHistograms(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := pathDatasetID(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	labels := parseCommaSeparated(query.Get("labels"))
	if len(labels) == 0 {
		labels = parseCommaSeparated(query.Get(argLabel))
	}

	histograms, err := h.store.GetHistograms(r.Context(), datasetID, labels)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if histograms == nil {
		histograms = []models.Histogram{}
	}
	respondJSON(w, http.StatusOK, histograms)
}
