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

// GetBaseModels returns the base model catalog ordered by ID.
func (db *DB) GetBaseModels(ctx context.Context) (_ []models.BaseModel, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "base_models", time.Now(), &err)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, type, task_type, parameters FROM base_models ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query base models: %w", err)
	}
	defer closeWithLog(rows, "base model rows")

	out := []models.BaseModel{}
	for rows.Next() {
		var (
			bm     models.BaseModel
			params string
		)
		if err = rows.Scan(&bm.ID, &bm.Name, &bm.Type, &bm.TaskType, &params); err != nil {
			return nil, fmt.Errorf("failed to scan base model: %w", err)
		}
		if bm.Parameters, err = unmarshalMap(params); err != nil {
			return nil, err
		}
		out = append(out, bm)
	}
	return out, rows.Err()
}

func getBaseModel(ctx context.Context, q querier, id string) (*models.BaseModel, error) {
	var (
		bm     models.BaseModel
		params string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, type, task_type, parameters FROM base_models WHERE id = ?`, id).
		Scan(&bm.ID, &bm.Name, &bm.Type, &bm.TaskType, &params)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("base model %q", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query base model: %w", err)
	}
	if bm.Parameters, err = unmarshalMap(params); err != nil {
		return nil, err
	}
	return &bm, nil
}

// GetBaseModel returns one base model or NotFound.
func (db *DB) GetBaseModel(ctx context.Context, id string) (_ *models.BaseModel, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "base_models", time.Now(), &err)

	return getBaseModel(ctx, db.conn, id)
}

// fittingIDsByModel maps model ID to its fitting IDs, oldest first.
func (db *DB) fittingIDsByModel(ctx context.Context, userID string) (map[string][]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT model_id, id FROM fittings WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fitting ids: %w", err)
	}
	defer closeWithLog(rows, "fitting id rows")

	out := make(map[string][]string)
	for rows.Next() {
		var modelID, fittingID string
		if err := rows.Scan(&modelID, &fittingID); err != nil {
			return nil, fmt.Errorf("failed to scan fitting id: %w", err)
		}
		out[modelID] = append(out[modelID], fittingID)
	}
	return out, rows.Err()
}

// GetModels returns the user's model configurations with their fitting IDs.
func (db *DB) GetModels(ctx context.Context, userID string) (_ []models.Model, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "models", time.Now(), &err)

	if err = requireUser(ctx, db.conn, userID); err != nil {
		return nil, err
	}
	fittings, err := db.fittingIDsByModel(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, base_model_id, parameters, created_at FROM models
		 WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer closeWithLog(rows, "model rows")

	out := []models.Model{}
	for rows.Next() {
		var (
			m      models.Model
			params string
		)
		if err = rows.Scan(&m.ID, &m.Name, &m.BaseModelID, &params, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		if m.Parameters, err = unmarshalMap(params); err != nil {
			return nil, err
		}
		m.FittingIDs = fittings[m.ID]
		if m.FittingIDs == nil {
			m.FittingIDs = []string{}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func getModel(ctx context.Context, q querier, userID, modelID string) (*models.Model, error) {
	var (
		m      models.Model
		params string
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, name, base_model_id, parameters, created_at FROM models WHERE user_id = ? AND id = ?`,
		userID, modelID).Scan(&m.ID, &m.Name, &m.BaseModelID, &params, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("model %q", modelID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model: %w", err)
	}
	if m.Parameters, err = unmarshalMap(params); err != nil {
		return nil, err
	}
	return &m, nil
}

// GetModel returns one of the user's models, including its fitting IDs.
func (db *DB) GetModel(ctx context.Context, userID, modelID string) (_ *models.Model, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "models", time.Now(), &err)

	if err = requireUser(ctx, db.conn, userID); err != nil {
		return nil, err
	}
	m, err := getModel(ctx, db.conn, userID, modelID)
	if err != nil {
		return nil, err
	}
	fittings, err := db.fittingIDsByModel(ctx, userID)
	if err != nil {
		return nil, err
	}
	m.FittingIDs = fittings[m.ID]
	if m.FittingIDs == nil {
		m.FittingIDs = []string{}
	}
	return m, nil
}

// AddModel persists a model configuration. The user and the base model must
// exist. ID and CreatedAt are filled in when empty.
func (db *DB) AddModel(ctx context.Context, userID string, model *models.Model) (err error) {
	if model == nil {
		return models.InvalidArgumentf("model must not be nil")
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("INSERT", "models", time.Now(), &err)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if err = requireUser(ctx, tx, userID); err != nil {
		return err
	}
	if _, err = getBaseModel(ctx, tx, model.BaseModelID); err != nil {
		return err
	}

	if model.ID == "" {
		model.ID = uuid.New().String()
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = db.now()
	}
	if model.FittingIDs == nil {
		model.FittingIDs = []string{}
	}
	params, err := marshalJSON(model.Parameters)
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO models (id, user_id, name, base_model_id, parameters, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		model.ID, userID, model.Name, model.BaseModelID, params, model.CreatedAt); err != nil {
		return fmt.Errorf("failed to add model: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit model: %w", err)
	}
	return nil
}
