// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package models

import (
	"errors"
	"fmt"
)

// Domain error kinds. Collaborators wrap these with context using %w so
// callers can classify failures with errors.Is.
var (
	// ErrNotFound indicates an unknown user or resource.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument indicates a missing or malformed field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict indicates the request clashes with current state,
	// e.g. a second training while one is running.
	ErrConflict = errors.New("conflict")

	// ErrUnavailable indicates a dependency (ML worker, broker) cannot serve
	// the request right now.
	ErrUnavailable = errors.New("unavailable")
)

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// InvalidArgumentf wraps ErrInvalidArgument with a formatted message.
func InvalidArgumentf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// Conflictf wraps ErrConflict with a formatted message.
func Conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

// Unavailablef wraps ErrUnavailable with a formatted message.
func Unavailablef(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnavailable)
}
