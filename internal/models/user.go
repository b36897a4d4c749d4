// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package models

import "time"

// User is the owner of molecules, models and fittings.
// The ID is the opaque string taken from the request path.
type User struct {
	ID        string    `json:"userID"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// UserRef is returned by POST /users.
type UserRef struct {
	UserID string `json:"userID"`
}

// DeleteResult confirms a delete-user call.
type DeleteResult struct {
	UserID  string `json:"userID"`
	Deleted bool   `json:"deleted"`
}
