// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/machine/internal/logging"
	"github.com/tomtom215/machine/internal/models"
)

type userPath struct {
	UserID string `json:"userID" validate:"required,resource_id,max=128"`
}

// createUserRequest is the login body. The username doubles as the user
// ID, so it must be usable in a path.
type createUserRequest struct {
	Username string `json:"username" validate:"required,resource_id,max=128"`
}

// createUserResponse is the body of POST /users.
type createUserResponse struct {
	UserID string `json:"userID"`
}

// pathUserID returns the validated {userID} path parameter, writing a 400
// and returning false when it is unusable.
func pathUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := userPath{UserID: chi.URLParam(r, "userID")}
	if apiErr := validateRequest(&p); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return "", false
	}
	return p.UserID, true
}

// parseArgs wraps ParseArgs and writes a 400 on malformed input.
func parseArgs(w http.ResponseWriter, r *http.Request) (*Args, bool) {
	args, err := ParseArgs(r)
	if err != nil {
		respondDomainError(w, r, err)
		return nil, false
	}
	return args, true
}

// CreateUser handles POST /users. The username is the user ID: the first
// call registers the user and later calls return the same {userID}.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	args, ok := parseArgs(w, r)
	if !ok {
		return
	}
	req := createUserRequest{Username: args.Username}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondValidationError(w, r, apiErr)
		return
	}

	user, err := h.store.GetOrAddUser(r.Context(), req.Username, req.Username)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, createUserResponse{UserID: user.ID})
}

// GetOrAddUser handles POST /users/{userID}.
func (h *Handler) GetOrAddUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}
	args, ok := parseArgs(w, r)
	if !ok {
		return
	}

	user, err := h.store.GetOrAddUser(r.Context(), userID, args.Username)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /users/{userID}. A running training is stopped
// before the user's data is removed, and its record is dropped afterwards.
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathUserID(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if _, err := h.engine.StopTraining(ctx, userID); err != nil && !errors.Is(err, models.ErrNotFound) {
		logging.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("Failed to stop training before user deletion")
	}

	deleteErr := h.store.DeleteUser(ctx, userID)
	if deleteErr != nil && !errors.Is(deleteErr, models.ErrNotFound) {
		respondDomainError(w, r, deleteErr)
		return
	}

	// A training record can outlive a user deleted earlier, so it is dropped
	// even when storage no longer knows the user.
	if err := h.engine.ForgetUser(ctx, userID); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if deleteErr != nil {
		respondDomainError(w, r, deleteErr)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
