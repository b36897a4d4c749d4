// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/machine/internal/models"
)

const fittingColumns = `id, model_id, model_name, dataset_id, fingerprint, labels, epochs, batch_size, accuracy, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFitting(row rowScanner) (*models.Fitting, error) {
	var (
		f      models.Fitting
		labels string
	)
	if err := row.Scan(&f.ID, &f.ModelID, &f.ModelName, &f.DatasetID, &f.Fingerprint,
		&labels, &f.Epochs, &f.BatchSize, &f.Accuracy, &f.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if f.Labels, err = unmarshalStrings(labels); err != nil {
		return nil, err
	}
	return &f, nil
}

// GetFittings returns the user's trained models, oldest first.
func (db *DB) GetFittings(ctx context.Context, userID string) (_ []models.Fitting, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "fittings", time.Now(), &err)

	if err = requireUser(ctx, db.conn, userID); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+fittingColumns+` FROM fittings WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fittings: %w", err)
	}
	defer closeWithLog(rows, "fitting rows")

	out := []models.Fitting{}
	for rows.Next() {
		f, scanErr := scanFitting(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan fitting: %w", scanErr)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// GetFitting returns one of the user's fittings or NotFound.
func (db *DB) GetFitting(ctx context.Context, userID, fittingID string) (_ *models.Fitting, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "fittings", time.Now(), &err)

	if err = requireUser(ctx, db.conn, userID); err != nil {
		return nil, err
	}
	f, err := scanFitting(db.conn.QueryRowContext(ctx,
		`SELECT `+fittingColumns+` FROM fittings WHERE user_id = ? AND id = ?`, userID, fittingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("fitting %q", fittingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query fitting: %w", err)
	}
	return f, nil
}

// AddFitting stores a trained model. The referenced model must belong to
// the user; ModelName is copied from it when empty.
func (db *DB) AddFitting(ctx context.Context, userID string, fitting *models.Fitting) (err error) {
	if fitting == nil {
		return models.InvalidArgumentf("fitting must not be nil")
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("INSERT", "fittings", time.Now(), &err)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if err = requireUser(ctx, tx, userID); err != nil {
		return err
	}
	model, err := getModel(ctx, tx, userID, fitting.ModelID)
	if err != nil {
		return err
	}

	if fitting.ID == "" {
		fitting.ID = uuid.New().String()
	}
	if fitting.ModelName == "" {
		fitting.ModelName = model.Name
	}
	if fitting.CreatedAt.IsZero() {
		fitting.CreatedAt = db.now()
	}
	labels, err := marshalStrings(fitting.Labels)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO fittings (id, user_id, model_id, model_name, dataset_id, fingerprint, labels, epochs, batch_size, accuracy, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fitting.ID, userID, fitting.ModelID, fitting.ModelName, fitting.DatasetID, fitting.Fingerprint,
		labels, fitting.Epochs, fitting.BatchSize, fitting.Accuracy, fitting.CreatedAt); err != nil {
		return fmt.Errorf("failed to add fitting: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit fitting: %w", err)
	}
	return nil
}
