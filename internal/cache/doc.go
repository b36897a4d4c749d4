// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

// Package cache provides a named, thread-safe TTL cache.
//
// The API layer caches read-mostly payloads (dataset listings, histograms,
// base models) and invalidates them by key prefix when the dataset importer
// reports a change:
//
//	c := cache.New("datasets", 5*time.Minute)
//	defer c.Close()
//	c.Set(cache.GenerateKey("histograms", params), hist)
//	c.DeletePrefix("datasets:")
//
// Hits, misses and entry counts are exported as Prometheus metrics labelled
// with the cache name.
package cache
