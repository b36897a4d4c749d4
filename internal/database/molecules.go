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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/machine/internal/models"
)

const analysisColumns = `id, smiles, fitting_id, model_name, results, metadata, created_at`

func scanAnalysis(rows *sql.Rows) (models.Analysis, error) {
	var (
		a                 models.Analysis
		results, metadata string
	)
	if err := rows.Scan(&a.ID, &a.MoleculeID, &a.FittingID, &a.ModelName, &results, &metadata, &a.CreatedAt); err != nil {
		return a, fmt.Errorf("failed to scan analysis: %w", err)
	}
	var err error
	if a.Results, err = unmarshalFloats(results); err != nil {
		return a, err
	}
	if a.Metadata, err = unmarshalMap(metadata); err != nil {
		return a, err
	}
	return a, nil
}

// GetMolecules returns the user's molecules, oldest first, each with its
// analyses.
func (db *DB) GetMolecules(ctx context.Context, userID string) (_ []models.Molecule, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "molecules", time.Now(), &err)

	if err = requireUser(ctx, db.conn, userID); err != nil {
		return nil, err
	}

	analyses, err := db.analysesBySmiles(ctx, userID)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT smiles, name, created_at FROM molecules WHERE user_id = ? ORDER BY created_at, smiles`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query molecules: %w", err)
	}
	defer closeWithLog(rows, "molecule rows")

	molecules := []models.Molecule{}
	for rows.Next() {
		var m models.Molecule
		if err = rows.Scan(&m.Smiles, &m.Name, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan molecule: %w", err)
		}
		m.Analyses = analyses[m.Smiles]
		if m.Analyses == nil {
			m.Analyses = []models.Analysis{}
		}
		molecules = append(molecules, m)
	}
	return molecules, rows.Err()
}

func (db *DB) analysesBySmiles(ctx context.Context, userID string) (map[string][]models.Analysis, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+analysisColumns+` FROM analyses WHERE user_id = ? ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer closeWithLog(rows, "analysis rows")

	out := make(map[string][]models.Analysis)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out[a.MoleculeID] = append(out[a.MoleculeID], a)
	}
	return out, rows.Err()
}

func getMolecule(ctx context.Context, q querier, userID, smiles string) (*models.Molecule, error) {
	var m models.Molecule
	err := q.QueryRowContext(ctx,
		`SELECT smiles, name, created_at FROM molecules WHERE user_id = ? AND smiles = ?`, userID, smiles).
		Scan(&m.Smiles, &m.Name, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("molecule %q", smiles)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query molecule: %w", err)
	}
	return &m, nil
}

// GetMolecule returns one molecule of the user, without analyses.
func (db *DB) GetMolecule(ctx context.Context, userID, smiles string) (_ *models.Molecule, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "molecules", time.Now(), &err)

	if err = requireUser(ctx, db.conn, userID); err != nil {
		return nil, err
	}
	return getMolecule(ctx, db.conn, userID, smiles)
}

// AddMolecule stores a molecule keyed by its SMILES. Adding an existing
// SMILES renames it unless name is empty.
func (db *DB) AddMolecule(ctx context.Context, userID, smiles, name string) (_ *models.Molecule, err error) {
	smiles = strings.TrimSpace(smiles)
	if smiles == "" {
		return nil, models.InvalidArgumentf("smiles must not be empty")
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("UPSERT", "molecules", time.Now(), &err)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if err = requireUser(ctx, tx, userID); err != nil {
		return nil, err
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO molecules (user_id, smiles, name, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, smiles) DO UPDATE SET
			name = CASE WHEN excluded.name = '' THEN molecules.name ELSE excluded.name END`,
		userID, smiles, name, db.now()); err != nil {
		return nil, fmt.Errorf("failed to add molecule: %w", err)
	}
	m, err := getMolecule(ctx, tx, userID, smiles)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit molecule: %w", err)
	}
	m.Analyses = []models.Analysis{}
	return m, nil
}

// AddAnalysis attaches an analysis to one of the user's molecules. ID and
// CreatedAt are filled in when empty.
func (db *DB) AddAnalysis(ctx context.Context, userID, moleculeID string, analysis *models.Analysis) (err error) {
	if analysis == nil {
		return models.InvalidArgumentf("analysis must not be nil")
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("INSERT", "analyses", time.Now(), &err)

	if err = requireUser(ctx, db.conn, userID); err != nil {
		return err
	}
	if _, err = getMolecule(ctx, db.conn, userID, moleculeID); err != nil {
		return err
	}

	if analysis.ID == "" {
		analysis.ID = uuid.New().String()
	}
	if analysis.CreatedAt.IsZero() {
		analysis.CreatedAt = db.now()
	}
	analysis.MoleculeID = moleculeID
	if analysis.Results == nil {
		analysis.Results = map[string]float64{}
	}

	results, err := marshalJSON(analysis.Results)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(analysis.Metadata)
	if err != nil {
		return err
	}

	if _, err = db.conn.ExecContext(ctx,
		`INSERT INTO analyses (id, user_id, smiles, fitting_id, model_name, results, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		analysis.ID, userID, moleculeID, analysis.FittingID, analysis.ModelName, results, metadata, analysis.CreatedAt); err != nil {
		return fmt.Errorf("failed to add analysis: %w", err)
	}
	return nil
}
