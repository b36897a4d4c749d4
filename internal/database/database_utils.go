// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/machine/internal/metrics"
	"github.com/tomtom215/machine/internal/models"
)

// defaultQueryTimeout bounds queries whose caller set no deadline.
const defaultQueryTimeout = 30 * time.Second

// ensureContext adds a timeout when ctx has no deadline.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), defaultQueryTimeout)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		return context.WithTimeout(ctx, defaultQueryTimeout)
	}
	return ctx, func() {}
}

// observe records a query in the duckdb metrics. Use as
// defer observe("SELECT", "models", time.Now(), &err).
func observe(operation, table string, start time.Time, err *error) {
	var qerr error
	if err != nil && !isDomainError(*err) {
		qerr = *err
	}
	metrics.RecordDBQuery(operation, table, time.Since(start), qerr)
}

// isDomainError reports errors that describe the request, not the database.
func isDomainError(err error) bool {
	return errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInvalidArgument) ||
		errors.Is(err, models.ErrConflict)
}

// Checkpoint forces a WAL checkpoint
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// marshalJSON encodes v for a JSON text column; nil maps become "{}".
func marshalJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	if string(data) == "null" {
		return "{}", nil
	}
	return string(data), nil
}

// marshalStrings encodes a string list; nil becomes "[]".
func marshalStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode column: %w", err)
	}
	return string(data), nil
}

func unmarshalMap(raw string) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode column: %w", err)
	}
	return out, nil
}

func unmarshalFloats(raw string) (map[string]float64, error) {
	out := map[string]float64{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode column: %w", err)
	}
	return out, nil
}

func unmarshalStrings(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to decode column: %w", err)
	}
	return out, nil
}

// quoteIdent quotes a column name taken from a CSV header.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteLiteral quotes a string for table function arguments, which do not
// accept bind parameters.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
