// MAChINE - Molecule Property Prediction Workbench
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/machine

package models

import "time"

// Dataset describes an imported CSV file. Histograms are only populated by
// the single-dataset lookups; the catalog listing omits them.
type Dataset struct {
	ID         string      `json:"datasetID"`
	Name       string      `json:"name"`
	Path       string      `json:"-"`
	Size       int64       `json:"size"`
	Labels     []string    `json:"labels"`
	Histograms []Histogram `json:"histograms,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Histogram is an equal-width distribution of one label column.
type Histogram struct {
	Label   string   `json:"label"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Buckets []Bucket `json:"buckets"`
}

// Bucket is one histogram bin; Lower is inclusive, Upper exclusive except
// for the last bin.
type Bucket struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int64   `json:"count"`
}

// HasLabel reports whether the dataset carries the given label column.
func (d *Dataset) HasLabel(label string) bool {
	for _, l := range d.Labels {
		if l == label {
			return true
		}
	}
	return false
}
