// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"net/http"

	"github.com/tomtom215/machine/internal/models"
)

type addMoleculeRequest struct {
	Smiles string `json:"smiles" validate:"required,max=1000,smiles"`
	Name   string `json:"name" validate:"max=200"`
}

type analyzeRequest struct {
	FittingID  string `json:"fittingID" validate:"required,resource_id"`
	MoleculeID string `json:"moleculeID" validate:"required"`
}

// GetMolecules handles GET /users/{userID}/molecules.
func (h *Handler) GetMolecules(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	list, err := h.store.GetMolecules(r.Context(), userID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Molecule{}
	}
	respondJSON(w, http.StatusOK, list)
}

// AddMolecule handles PATCH /users/{userID}/molecules. The molecule is
// identified by its SMILES; moleculeID is accepted as an alias.
func (h *Handler) AddMolecule(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	args, ok := parseArgs(w, r)
	if !ok {
		return
	}

	req := addMoleculeRequest{Smiles: args.Smiles, Name: args.Name}
	if req.Smiles == "" {
		req.Smiles = args.MoleculeID
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	molecule, err := h.store.AddMolecule(r.Context(), userID, req.Smiles, req.Name)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, molecule)
}

// Analyze handles POST /users/{userID}/analyze.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	args, ok := parseArgs(w, r)
	if !ok {
		return
	}

	req := analyzeRequest{FittingID: args.FittingID, MoleculeID: args.MoleculeID}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	analysis, err := h.engine.Analyze(r.Context(), userID, req.FittingID, req.MoleculeID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, analysis)
}
