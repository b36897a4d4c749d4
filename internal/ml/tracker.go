// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package ml

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/machine/internal/config"
	"github.com/tomtom215/machine/internal/logging"
	"github.com/tomtom215/machine/internal/models"
)

// trainingKeyPrefix prefixes the latest training of each user.
const trainingKeyPrefix = "training:user:"

// errUnchanged aborts an Update without writing.
var errUnchanged = errors.New("training unchanged")

// Tracker persists each user's latest training in Badger. Transitions are
// serialized so that at most one running training exists per user.
type Tracker struct {
	db     *badger.DB
	ownsDB bool
	mu     sync.Mutex
}

// OpenTracker opens the Badger store described by cfg.
func OpenTracker(cfg *config.StoreConfig) (*Tracker, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open training store: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Training store opened")

	return &Tracker{db: db, ownsDB: true}, nil
}

// NewTracker uses an already open Badger database. Close leaves db open.
func NewTracker(db *badger.DB) *Tracker {
	return &Tracker{db: db}
}

// Close closes the store if the tracker opened it.
func (t *Tracker) Close() error {
	if !t.ownsDB {
		return nil
	}
	return t.db.Close()
}

// Healthy reports whether the store can still serve reads.
func (t *Tracker) Healthy() bool {
	return t.db != nil && !t.db.IsClosed()
}

func trainingKey(userID string) []byte {
	return []byte(trainingKeyPrefix + userID)
}

// Begin stores tr as the user's current training. It fails with ErrConflict
// while another training of the same user is running.
func (t *Tracker) Begin(ctx context.Context, tr *models.Training) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.db.Update(func(txn *badger.Txn) error {
		current, err := loadTraining(txn, tr.UserID)
		if err != nil {
			return err
		}
		if current != nil && current.Status == models.TrainingRunning {
			return models.Conflictf("training %s is already running for user %s", current.ID, tr.UserID)
		}
		return storeTraining(txn, tr)
	})
}

// Get returns the user's latest training.
func (t *Tracker) Get(ctx context.Context, userID string) (*models.Training, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tr *models.Training
	err := t.db.View(func(txn *badger.Txn) error {
		var err error
		tr, err = loadTraining(txn, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if tr == nil {
		return nil, models.NotFoundf("no training for user %s", userID)
	}
	return tr, nil
}

// Update applies fn to the user's latest training and stores the result.
// If fn returns errUnchanged nothing is written and the stored value is
// returned with a nil error.
func (t *Tracker) Update(ctx context.Context, userID string, fn func(tr *models.Training) error) (*models.Training, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var result *models.Training
	err := t.db.Update(func(txn *badger.Txn) error {
		tr, err := loadTraining(txn, userID)
		if err != nil {
			return err
		}
		if tr == nil {
			return models.NotFoundf("no training for user %s", userID)
		}
		result = tr
		if err := fn(tr); err != nil {
			return err
		}
		return storeTraining(txn, tr)
	})
	if errors.Is(err, errUnchanged) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Running lists every training still in the running state.
func (t *Tracker) Running(ctx context.Context) ([]models.Training, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var running []models.Training
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(trainingKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var tr models.Training
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &tr)
			}); err != nil {
				return fmt.Errorf("failed to decode training %s: %w", it.Item().Key(), err)
			}
			if tr.Status == models.TrainingRunning {
				running = append(running, tr)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return running, nil
}

// Delete forgets the user's training.
func (t *Tracker) Delete(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(trainingKey(userID))
	})
}

func loadTraining(txn *badger.Txn, userID string) (*models.Training, error) {
	item, err := txn.Get(trainingKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read training: %w", err)
	}

	var tr models.Training
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &tr)
	}); err != nil {
		return nil, fmt.Errorf("failed to decode training: %w", err)
	}
	return &tr, nil
}

func storeTraining(txn *badger.Txn, tr *models.Training) error {
	data, err := json.Marshal(tr)
	if err != nil {
		return fmt.Errorf("failed to encode training: %w", err)
	}
	return txn.Set(trainingKey(tr.UserID), data)
}
