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

	"github.com/tomtom215/machine/internal/models"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ownedTables lists the tables removed with their user, children first.
var ownedTables = []string{"analyses", "molecules", "fittings", "models"}

func getUser(ctx context.Context, q querier, userID string) (*models.User, error) {
	var u models.User
	err := q.QueryRowContext(ctx,
		`SELECT id, username, created_at FROM users WHERE id = ?`, userID).
		Scan(&u.ID, &u.Username, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NotFoundf("user %q", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &u, nil
}

// requireUser returns NotFound unless userID exists.
func requireUser(ctx context.Context, q querier, userID string) error {
	_, err := getUser(ctx, q, userID)
	return err
}

// GetUser returns the user or NotFound.
func (db *DB) GetUser(ctx context.Context, userID string) (_ *models.User, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("SELECT", "users", time.Now(), &err)

	return getUser(ctx, db.conn, userID)
}

// GetOrAddUser returns the existing user or creates it. An empty username
// defaults to the ID.
func (db *DB) GetOrAddUser(ctx context.Context, userID, username string) (_ *models.User, err error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, models.InvalidArgumentf("user id must not be empty")
	}
	if username == "" {
		username = userID
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("UPSERT", "users", time.Now(), &err)

	now := db.now()
	if _, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		userID, username, now); err != nil {
		return nil, fmt.Errorf("failed to add user: %w", err)
	}
	return getUser(ctx, db.conn, userID)
}

// AddUser creates a user, failing with Conflict if the ID is taken.
func (db *DB) AddUser(ctx context.Context, userID, username string) (_ *models.User, err error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, models.InvalidArgumentf("user id must not be empty")
	}
	if username == "" {
		username = userID
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("INSERT", "users", time.Now(), &err)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if _, lookupErr := getUser(ctx, tx, userID); lookupErr == nil {
		return nil, models.Conflictf("user %q already exists", userID)
	} else if !errors.Is(lookupErr, models.ErrNotFound) {
		return nil, lookupErr
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, username, created_at) VALUES (?, ?, ?)`,
		userID, username, db.now()); err != nil {
		return nil, fmt.Errorf("failed to add user: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user: %w", err)
	}
	return getUser(ctx, db.conn, userID)
}

// DeleteUser removes the user and everything it owns in one transaction.
func (db *DB) DeleteUser(ctx context.Context, userID string) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	defer observe("DELETE", "users", time.Now(), &err)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	if err = requireUser(ctx, tx, userID); err != nil {
		return err
	}
	for _, table := range ownedTables {
		// table comes from the fixed ownedTables list.
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user deletion: %w", err)
	}
	return nil
}
