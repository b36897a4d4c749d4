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

	"github.com/goccy/go-json"

	"github.com/tomtom215/machine/internal/models"
)

// GetDatasetsInfo lists all datasets without histograms.
func (db *DB) GetDatasetsInfo(ctx context.Context) (_ []models.Dataset, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "datasets", time.Now(), &err)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, path, size, labels, created_at FROM datasets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer closeWithLog(rows, "dataset rows")

	out := []models.Dataset{}
	for rows.Next() {
		d, scanErr := scanDataset(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDataset(row rowScanner) (*models.Dataset, error) {
	var (
		d      models.Dataset
		labels string
	)
	if err := row.Scan(&d.ID, &d.Name, &d.Path, &d.Size, &labels, &d.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan dataset: %w", err)
	}
	var err error
	if d.Labels, err = unmarshalStrings(labels); err != nil {
		return nil, err
	}
	return &d, nil
}

func getDataset(ctx context.Context, q querier, id string) (*models.Dataset, error) {
	d, err := scanDataset(q.QueryRowContext(ctx,
		`SELECT id, name, path, size, labels, created_at FROM datasets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("dataset %q", id)
	}
	return d, err
}

// GetDataset returns a dataset with all of its histograms.
func (db *DB) GetDataset(ctx context.Context, id string) (_ *models.Dataset, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "datasets", time.Now(), &err)

	d, err := getDataset(ctx, db.conn, id)
	if err != nil {
		return nil, err
	}
	if d.Histograms, err = db.histograms(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

// GetHistograms returns the histograms of the requested labels in request
// order, or all of them when labels is empty. Unknown labels are rejected.
func (db *DB) GetHistograms(ctx context.Context, datasetID string, labels []string) (_ []models.Histogram, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "dataset_histograms", time.Now(), &err)

	d, err := getDataset(ctx, db.conn, datasetID)
	if err != nil {
		return nil, err
	}
	for _, label := range labels {
		if !d.HasLabel(label) {
			return nil, models.InvalidArgumentf("dataset %q has no label %q", datasetID, label)
		}
	}

	all, err := db.histograms(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return all, nil
	}

	byLabel := make(map[string]models.Histogram, len(all))
	for _, h := range all {
		byLabel[h.Label] = h
	}
	out := make([]models.Histogram, 0, len(labels))
	for _, label := range labels {
		if h, ok := byLabel[label]; ok {
			out = append(out, h)
		}
	}
	return out, nil
}

func (db *DB) histograms(ctx context.Context, datasetID string) ([]models.Histogram, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT label, min_value, max_value, buckets FROM dataset_histograms WHERE dataset_id = ? ORDER BY label`,
		datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query histograms: %w", err)
	}
	defer closeWithLog(rows, "histogram rows")

	out := []models.Histogram{}
	for rows.Next() {
		var (
			h       models.Histogram
			buckets string
		)
		if err := rows.Scan(&h.Label, &h.Min, &h.Max, &buckets); err != nil {
			return nil, fmt.Errorf("failed to scan histogram: %w", err)
		}
		h.Buckets = []models.Bucket{}
		if err := json.Unmarshal([]byte(buckets), &h.Buckets); err != nil {
			return nil, fmt.Errorf("failed to decode histogram buckets: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// UpsertDataset stores a dataset and replaces its histograms.
func (db *DB) UpsertDataset(ctx context.Context, d *models.Dataset) (err error) {
	if d == nil || d.ID == "" {
		return models.InvalidArgumentf("dataset id must not be empty")
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("UPSERT", "datasets", time.Now(), &err)

	if d.CreatedAt.IsZero() {
		d.CreatedAt = db.now()
	}
	labels, err := marshalStrings(d.Labels)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO datasets (id, name, path, size, labels, created_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, path = excluded.path, size = excluded.size, labels = excluded.labels`,
		d.ID, d.Name, d.Path, d.Size, labels, d.CreatedAt); err != nil {
		return fmt.Errorf("failed to upsert dataset: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM dataset_histograms WHERE dataset_id = ?`, d.ID); err != nil {
		return fmt.Errorf("failed to clear histograms: %w", err)
	}
	for _, h := range d.Histograms {
		buckets, encErr := json.Marshal(h.Buckets)
		if encErr != nil {
			err = fmt.Errorf("failed to encode histogram buckets: %w", encErr)
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO dataset_histograms (dataset_id, label, min_value, max_value, buckets) VALUES (?, ?, ?, ?, ?)`,
			d.ID, h.Label, h.Min, h.Max, string(buckets)); err != nil {
			return fmt.Errorf("failed to insert histogram %q: %w", h.Label, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dataset: %w", err)
	}
	return nil
}

// DeleteDataset removes a dataset and its histograms. Fittings keep their
// dataset ID as a historical reference.
func (db *DB) DeleteDataset(ctx context.Context, id string) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("DELETE", "datasets", time.Now(), &err)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, err = getDataset(ctx, tx, id); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM dataset_histograms WHERE dataset_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete histograms: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM datasets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dataset deletion: %w", err)
	}
	return nil
}
