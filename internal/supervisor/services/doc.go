// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

// Package services adapts blocking components to suture.Service: the HTTP
// server and the fsnotify-based dataset directory watcher.
package services
