// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/machine/internal/logging"
)

// Migration represents a versioned database migration.
type Migration struct {
	Version     int
	Name        string
	Description string
	Statements  []string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name VARCHAR NOT NULL,
	description VARCHAR,
	applied_at TIMESTAMP NOT NULL
);
`

// migrations is append-only: never edit or reorder an entry once released.
var migrations = []Migration{
	{
		Version:     1,
		Name:        "initial_schema",
		Description: "Users and the tables they own",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id VARCHAR PRIMARY KEY,
				username VARCHAR NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS molecules (
				user_id VARCHAR NOT NULL,
				smiles VARCHAR NOT NULL,
				name VARCHAR NOT NULL,
				created_at TIMESTAMP NOT NULL,
				PRIMARY KEY (user_id, smiles)
			)`,
			`CREATE TABLE IF NOT EXISTS analyses (
				id VARCHAR PRIMARY KEY,
				user_id VARCHAR NOT NULL,
				smiles VARCHAR NOT NULL,
				fitting_id VARCHAR NOT NULL,
				model_name VARCHAR NOT NULL,
				results VARCHAR NOT NULL,
				metadata VARCHAR NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS models (
				id VARCHAR PRIMARY KEY,
				user_id VARCHAR NOT NULL,
				name VARCHAR NOT NULL,
				base_model_id VARCHAR NOT NULL,
				parameters VARCHAR NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS fittings (
				id VARCHAR PRIMARY KEY,
				user_id VARCHAR NOT NULL,
				model_id VARCHAR NOT NULL,
				model_name VARCHAR NOT NULL,
				dataset_id VARCHAR NOT NULL,
				fingerprint VARCHAR NOT NULL,
				labels VARCHAR NOT NULL,
				epochs INTEGER NOT NULL,
				batch_size INTEGER NOT NULL,
				accuracy DOUBLE NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
		},
	},
	{
		Version:     2,
		Name:        "catalog",
		Description: "Base models, datasets and dataset histograms",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS base_models (
				id VARCHAR PRIMARY KEY,
				name VARCHAR NOT NULL,
				type VARCHAR NOT NULL,
				task_type VARCHAR NOT NULL,
				parameters VARCHAR NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS datasets (
				id VARCHAR PRIMARY KEY,
				name VARCHAR NOT NULL,
				path VARCHAR NOT NULL,
				size BIGINT NOT NULL,
				labels VARCHAR NOT NULL,
				created_at TIMESTAMP NOT NULL
			)`,
			// No primary key: a re-import deletes and re-inserts the same
			// (dataset_id, label) pairs inside one transaction.
			`CREATE TABLE IF NOT EXISTS dataset_histograms (
				dataset_id VARCHAR NOT NULL,
				label VARCHAR NOT NULL,
				min_value DOUBLE NOT NULL,
				max_value DOUBLE NOT NULL,
				buckets VARCHAR NOT NULL
			)`,
		},
	},
	{
		Version:     3,
		Name:        "seed_base_models",
		Description: "Seed the Sequential and SchNet base models",
		Statements: []string{
			`INSERT INTO base_models (id, name, type, task_type, parameters) VALUES
				('1', 'Sequential', 'sequential', 'regression',
				 '{"layers":2,"units_per_layer":256,"activation":"relu","optimizer":"Adam","loss":"MeanSquaredError","metrics":"MeanSquaredError"}'),
				('2', 'SchNet', 'schnet', 'regression',
				 '{"embedding_dimension":128,"interaction_blocks":3,"cutoff":5.0,"optimizer":"Adam","loss":"MeanSquaredError"}')
			ON CONFLICT DO NOTHING`,
		},
	},
	{
		Version:     4,
		Name:        "ownership_indexes",
		Description: "Index user_id lookups on owned tables",
		Statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_analyses_user ON analyses (user_id, smiles)`,
			`CREATE INDEX IF NOT EXISTS idx_models_user ON models (user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_fittings_user ON fittings (user_id)`,
			`CREATE INDEX IF NOT EXISTS idx_histograms_dataset ON dataset_histograms (dataset_id)`,
		},
	},
}

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// getAppliedMigrations returns version -> Migration for all applied migrations
func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer closeWithLog(rows, "migration rows")

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// runVersionedMigrations applies every migration not yet recorded, each in
// its own transaction.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	newMigrations := 0
	for _, m := range migrations {
		if _, exists := applied[m.Version]; exists {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return err
		}
		newMigrations++
	}

	if newMigrations > 0 {
		logging.Info().Int("count", newMigrations).Msg("Applied database migrations")
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration v%d: %w", m.Version, err)
	}
	defer rollbackQuietly(tx)

	for _, stmt := range m.Statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, name, description, applied_at) VALUES (?, ?, ?, ?)`,
		m.Version, m.Name, m.Description, db.now()); err != nil {
		return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
	}
	return tx.Commit()
}

// GetCurrentSchemaVersion returns the highest applied migration version
func (db *DB) GetCurrentSchemaVersion(ctx context.Context) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var version int
	err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
