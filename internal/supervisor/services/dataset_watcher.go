// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/tomtom215/machine/internal/database"
	"github.com/tomtom215/machine/internal/logging"
	"github.com/tomtom215/machine/internal/models"
)

// DefaultDebounce groups the bursts of write events a single file copy
// produces.
const DefaultDebounce = 500 * time.Millisecond

// DatasetImporter is the storage surface used by the watcher.
// *database.DB satisfies it.
type DatasetImporter interface {
	ImportDataset(ctx context.Context, path string, bins int) (*models.Dataset, error)
	DeleteDataset(ctx context.Context, id string) error
}

// DatasetWatcher re-imports dataset CSVs when they change on disk and drops
// datasets whose file disappears.
type DatasetWatcher struct {
	dir      string
	bins     int
	importer DatasetImporter
	onChange func()
	debounce time.Duration
}

// NewDatasetWatcher watches dir. onChange, if set, runs after every batch of
// imports, e.g. to invalidate the catalog cache.
func NewDatasetWatcher(dir string, bins int, importer DatasetImporter, onChange func()) *DatasetWatcher {
	return &DatasetWatcher{
		dir:      dir,
		bins:     bins,
		importer: importer,
		onChange: onChange,
		debounce: DefaultDebounce,
	}
}

// WithDebounce overrides the quiet period before pending files are imported.
func (w *DatasetWatcher) WithDebounce(d time.Duration) *DatasetWatcher {
	w.debounce = d
	return w
}

// Serve implements suture.Service.
func (w *DatasetWatcher) Serve(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if cerr := watcher.Close(); cerr != nil {
			logging.Debug().Err(cerr).Msg("Failed to close file watcher")
		}
	}()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	logging.Info().Str("dir", w.dir).Msg("Dataset watcher started")

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Dataset watcher stopped")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			if !database.IsDatasetFile(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			logging.Warn().Err(err).Str("dir", w.dir).Msg("Dataset watcher error")

		case <-timer.C:
			w.flush(ctx, pending)
			pending = make(map[string]struct{})
		}
	}
}

// flush imports or removes every pending file, in path order.
func (w *DatasetWatcher) flush(ctx context.Context, pending map[string]struct{}) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	changed := false
	for _, path := range paths {
		id := database.DatasetIDFromPath(path)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if err := w.importer.DeleteDataset(ctx, id); err != nil && !errors.Is(err, models.ErrNotFound) {
				logging.Warn().Err(err).Str("dataset_id", id).Msg("Failed to remove dataset")
				continue
			}
			logging.Info().Str("dataset_id", id).Msg("Dataset removed")
			changed = true
			continue
		}

		d, err := w.importer.ImportDataset(ctx, filepath.Clean(path), w.bins)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Failed to import dataset")
			continue
		}
		logging.Info().Str("dataset_id", d.ID).Int64("size", d.Size).Strs("labels", d.Labels).Msg("Dataset imported")
		changed = true
	}

	if changed && w.onChange != nil {
		w.onChange()
	}
}

// String returns the service name for the supervisor.
func (w *DatasetWatcher) String() string {
	return "dataset-watcher"
}
