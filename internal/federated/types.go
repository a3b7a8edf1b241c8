// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package federated

import (
	"fmt"
	"sort"
)

// Vector is a latent factor vector of fixed dimension k.
type Vector []float64

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	if v == nil {
		return nil
	}
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// ItemFactorMatrix is the global item-factor matrix. Row i is the latent
// vector of the item with vocabulary id i.
//
// The matrix is treated as a value: Grow, WithRow and Clone return new
// matrices and never modify rows held by another snapshot.
type ItemFactorMatrix struct {
	// Dim is the latent dimension k, fixed at initialization.
	Dim int `json:"dim"`

	// Rows holds one vector per item id.
	Rows []Vector `json:"rows"`
}

// NewItemFactorMatrix builds a matrix and checks every row has dimension dim.
func NewItemFactorMatrix(dim int, rows []Vector) (ItemFactorMatrix, error) {
	m := ItemFactorMatrix{Dim: dim, Rows: rows}
	if err := m.Validate(); err != nil {
		return ItemFactorMatrix{}, err
	}
	return m, nil
}

// Validate checks that the dimension is positive and all rows match it.
func (m ItemFactorMatrix) Validate() error {
	if m.Dim <= 0 {
		return fmt.Errorf("%w: latent dimension must be positive, got %d", ErrConfiguration, m.Dim)
	}
	for i, row := range m.Rows {
		if len(row) != m.Dim {
			return &DimensionError{Op: fmt.Sprintf("item row %d", i), Want: m.Dim, Got: len(row)}
		}
	}
	return nil
}

// Len returns the number of item rows.
func (m ItemFactorMatrix) Len() int {
	return len(m.Rows)
}

// Row returns the vector for id, or false when id is out of range.
// The returned vector is shared; clone it before modifying.
func (m ItemFactorMatrix) Row(id int) (Vector, bool) {
	if id < 0 || id >= len(m.Rows) {
		return nil, false
	}
	return m.Rows[id], true
}

// Clone returns a deep copy of m.
func (m ItemFactorMatrix) Clone() ItemFactorMatrix {
	rows := make([]Vector, len(m.Rows))
	for i, row := range m.Rows {
		rows[i] = row.Clone()
	}
	return ItemFactorMatrix{Dim: m.Dim, Rows: rows}
}

// Grow returns a matrix with at least n rows. Appended rows are drawn from
// the seeder's jitter distribution; existing rows are shared, not copied.
// If m already has n or more rows it is returned unchanged.
func (m ItemFactorMatrix) Grow(n int, seeder *Seeder) ItemFactorMatrix {
	if n <= len(m.Rows) {
		return m
	}
	rows := make([]Vector, len(m.Rows), n)
	copy(rows, m.Rows)
	for len(rows) < n {
		rows = append(rows, seeder.Vector(m.Dim))
	}
	return ItemFactorMatrix{Dim: m.Dim, Rows: rows}
}

// WithRow returns a matrix whose row id is replaced by v. Other rows are
// shared with m. id must be in range.
func (m ItemFactorMatrix) WithRow(id int, v Vector) ItemFactorMatrix {
	rows := make([]Vector, len(m.Rows))
	copy(rows, m.Rows)
	rows[id] = v
	return ItemFactorMatrix{Dim: m.Dim, Rows: rows}
}

// Delta is a sparse per-item change: item id to the difference between an
// updated and an original item vector. Items absent from the map are unchanged.
type Delta map[int]Vector

// Clone returns a deep copy of d.
func (d Delta) Clone() Delta {
	out := make(Delta, len(d))
	for id, v := range d {
		out[id] = v.Clone()
	}
	return out
}

// IDs returns the item ids in ascending order.
func (d Delta) IDs() []int {
	ids := make([]int, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// MaxID returns the largest id in d, or -1 when d is empty.
func (d Delta) MaxID() int {
	maxID := -1
	for id := range d {
		if id > maxID {
			maxID = id
		}
	}
	return maxID
}

// Validate checks that every id is non-negative and every vector has dim entries.
func (d Delta) Validate(dim int) error {
	for id, v := range d {
		if id < 0 {
			return fmt.Errorf("%w: %d", ErrInvalidID, id)
		}
		if len(v) != dim {
			return &DimensionError{Op: fmt.Sprintf("delta item %d", id), Want: dim, Got: len(v)}
		}
	}
	return nil
}

// RatingRecord is one entry of a user's private rating history.
type RatingRecord struct {
	// Title is the display title as recorded by the history source.
	Title string `json:"title"`

	// Bucket is the coarse time bucket (week number) of the interaction.
	Bucket int `json:"bucket"`

	// WatchCount is the number of times the title was watched in the bucket.
	WatchCount int `json:"watch_count"`

	// Rating is the scalar training target.
	Rating float64 `json:"rating"`
}
