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
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tomtom215/machine/internal/logging"
	"github.com/tomtom215/machine/internal/metrics"
	"github.com/tomtom215/machine/internal/models"
)

// DefaultHistogramBins is used when the caller passes a non-positive count.
const DefaultHistogramBins = 20

// smilesColumn is the required structure column of every dataset CSV.
const smilesColumn = "smiles"

// numericTypePrefixes are the DuckDB column types treated as labels.
var numericTypePrefixes = []string{
	"TINYINT", "SMALLINT", "INTEGER", "BIGINT", "HUGEINT",
	"UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT", "UHUGEINT",
	"FLOAT", "DOUBLE", "REAL", "DECIMAL",
}

// DatasetIDFromPath returns the dataset ID for a CSV path: its file stem.
func DatasetIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// IsDatasetFile reports whether path looks like an importable dataset.
func IsDatasetFile(path string) bool {
	base := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(base), ".csv") && !strings.HasPrefix(base, ".")
}

type csvColumn struct {
	name     string
	dataType string
}

// ImportDataset reads a CSV file with read_csv_auto, detects its label
// columns, computes label histograms and stores the result.
func (db *DB) ImportDataset(ctx context.Context, path string, bins int) (_ *models.Dataset, err error) {
	defer func() { metrics.RecordDatasetImport(err) }()

	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dataset path: %w", err)
	}
	info, err := os.Stat(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, models.NotFoundf("dataset file %q", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat dataset file: %w", err)
	}
	if info.IsDir() {
		return nil, models.InvalidArgumentf("dataset path %q is a directory", path)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	source := "read_csv_auto(" + quoteLiteral(absPath) + ", header = true)"

	columns, err := db.describeCSV(ctx, source)
	if err != nil {
		return nil, err
	}

	smiles := ""
	labels := []string{}
	for _, col := range columns {
		switch {
		case strings.EqualFold(col.name, smilesColumn):
			smiles = col.name
		case isNumericType(col.dataType):
			labels = append(labels, col.name)
		}
	}
	if smiles == "" {
		return nil, models.InvalidArgumentf("dataset %q has no %s column", filepath.Base(path), smilesColumn)
	}

	var size int64
	if err = db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+source).Scan(&size); err != nil {
		return nil, fmt.Errorf("failed to count dataset rows: %w", err)
	}

	histograms := make([]models.Histogram, 0, len(labels))
	for _, label := range labels {
		h, histErr := db.computeHistogram(ctx, source, label, bins)
		if histErr != nil {
			err = histErr
			return nil, err
		}
		histograms = append(histograms, *h)
	}

	id := DatasetIDFromPath(absPath)
	dataset := &models.Dataset{
		ID:         id,
		Name:       id,
		Path:       absPath,
		Size:       size,
		Labels:     labels,
		Histograms: histograms,
	}
	if err = db.UpsertDataset(ctx, dataset); err != nil {
		return nil, err
	}

	logging.Info().
		Str("dataset_id", id).
		Int64("rows", size).
		Strs("labels", labels).
		Msg("Imported dataset")
	return dataset, nil
}

// ImportDatasetDir imports every CSV in dir. Files that fail are logged and
// skipped; the error is only non-nil when dir itself cannot be read.
func (db *DB) ImportDatasetDir(ctx context.Context, dir string, bins int) ([]models.Dataset, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		logging.Warn().Str("dir", dir).Msg("Dataset directory does not exist, skipping import")
		return []models.Dataset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	imported := []models.Dataset{}
	for _, entry := range entries {
		if entry.IsDir() || !IsDatasetFile(entry.Name()) {
			continue
		}
		if ctx.Err() != nil {
			return imported, ctx.Err()
		}
		path := filepath.Join(dir, entry.Name())
		d, importErr := db.ImportDataset(ctx, path, bins)
		if importErr != nil {
			logging.Warn().Err(importErr).Str("path", path).Msg("Failed to import dataset")
			continue
		}
		imported = append(imported, *d)
	}
	sort.Slice(imported, func(i, j int) bool { return imported[i].ID < imported[j].ID })
	return imported, nil
}

func (db *DB) describeCSV(ctx context.Context, source string) ([]csvColumn, error) {
	rows, err := db.conn.QueryContext(ctx, "DESCRIBE SELECT * FROM "+source)
	if err != nil {
		return nil, models.InvalidArgumentf("failed to read dataset: %v", err)
	}
	defer closeWithLog(rows, "describe rows")

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read describe columns: %w", err)
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("unexpected describe output with %d columns", len(names))
	}

	var columns []csvColumn
	values := make([]sql.NullString, len(names))
	dest := make([]interface{}, len(names))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan describe row: %w", err)
		}
		// DESCRIBE yields column_name, column_type first.
		columns = append(columns, csvColumn{name: values[0].String, dataType: values[1].String})
	}
	return columns, rows.Err()
}

func isNumericType(dataType string) bool {
	upper := strings.ToUpper(dataType)
	for _, prefix := range numericTypePrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// computeHistogram builds an equal-width histogram of one label column,
// ignoring NULL and non-finite values.
func (db *DB) computeHistogram(ctx context.Context, source, label string, bins int) (*models.Histogram, error) {
	values := fmt.Sprintf(
		"(SELECT CAST(%s AS DOUBLE) AS v FROM %s) WHERE v IS NOT NULL AND isfinite(v)",
		quoteIdent(label), source)

	var (
		lo, hi sql.NullFloat64
		count  int64
	)
	if err := db.conn.QueryRowContext(ctx, "SELECT MIN(v), MAX(v), COUNT(v) FROM "+values).
		Scan(&lo, &hi, &count); err != nil {
		return nil, fmt.Errorf("failed to compute range of %q: %w", label, err)
	}

	h := &models.Histogram{Label: label, Buckets: []models.Bucket{}}
	if count == 0 || !lo.Valid || !hi.Valid {
		return h, nil
	}
	h.Min, h.Max = lo.Float64, hi.Float64

	if h.Min == h.Max {
		h.Buckets = append(h.Buckets, models.Bucket{Lower: h.Min, Upper: h.Max, Count: count})
		return h, nil
	}

	width := (h.Max - h.Min) / float64(bins)
	h.Buckets = make([]models.Bucket, bins)
	for i := range h.Buckets {
		h.Buckets[i] = models.Bucket{
			Lower: h.Min + float64(i)*width,
			Upper: h.Min + float64(i+1)*width,
		}
	}
	// Pin the last edge so rounding cannot drop the maximum.
	h.Buckets[bins-1].Upper = h.Max

	rows, err := db.conn.QueryContext(ctx,
		"SELECT LEAST(CAST(FLOOR((v - ?) / ?) AS BIGINT), ?) AS bucket, COUNT(*) FROM "+values+
			" GROUP BY bucket ORDER BY bucket",
		h.Min, width, bins-1)
	if err != nil {
		return nil, fmt.Errorf("failed to bucket %q: %w", label, err)
	}
	defer closeWithLog(rows, "histogram rows")

	for rows.Next() {
		var bucket, n int64
		if err := rows.Scan(&bucket, &n); err != nil {
			return nil, fmt.Errorf("failed to scan bucket: %w", err)
		}
		idx := int(math.Max(0, math.Min(float64(bucket), float64(bins-1))))
		h.Buckets[idx].Count += n
	}
	return h, rows.Err()
}
