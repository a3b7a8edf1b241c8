// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

// Package aggregation merges many participants' item deltas into one update
// of the global item-factor matrix.
//
// For each item the merged update is
//
//	u_i = lr * sum_p w_p * delta_p[i]
//
// where participants that did not touch item i contribute zero. The merged
// update is then optionally clipped and noised a second time (server-side
// privacy), and finally added to the matrix. Item ids beyond the current
// matrix bound cause the matrix to grow first, with jitter rows.
package aggregation

import (
	"fmt"
	"math"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/privacy"
)

// DefaultLearningRate is the server-side scale applied to the merged update.
const DefaultLearningRate = 1.0

// Request describes one aggregation.
type Request struct {
	// Deltas holds one delta per participant, in participant order.
	Deltas []federated.Delta

	// Weights holds one weight per delta. Nil means 1/len(Deltas) each.
	Weights []float64

	// LearningRate scales the merged update.
	// Default: 1.0 (applied when zero).
	LearningRate float64

	// Privacy configures server-side clipping and noise of the merged update.
	// The zero value disables both.
	Privacy privacy.Params
}

// Summary reports what an aggregation did.
type Summary struct {
	Participants int  `json:"participants"`
	ItemsUpdated int  `json:"items_updated"`
	RowsBefore   int  `json:"rows_before"`
	RowsAfter    int  `json:"rows_after"`
	Clipped      int  `json:"clipped"`
	Noised       bool `json:"noised"`
}

// weights returns the effective per-participant weights.
func (r *Request) weights() ([]float64, error) {
	n := len(r.Deltas)
	if r.Weights == nil {
		w := make([]float64, n)
		for i := range w {
			w[i] = 1 / float64(n)
		}
		return w, nil
	}
	if len(r.Weights) != n {
		return nil, fmt.Errorf("%w: %d weights for %d deltas", federated.ErrConfiguration, len(r.Weights), n)
	}
	for i, w := range r.Weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight %d is %v", federated.ErrConfiguration, i, w)
		}
	}
	return r.Weights, nil
}

// Merge computes the weighted, learning-rate scaled sum of the request's
// deltas without applying privacy. It validates ids and dimensions against dim.
func Merge(dim int, req Request) (federated.Delta, error) {
	if len(req.Deltas) == 0 {
		return federated.Delta{}, nil
	}
	weights, err := req.weights()
	if err != nil {
		return nil, err
	}
	lr := req.LearningRate
	if lr == 0 {
		lr = DefaultLearningRate
	}
	if lr < 0 || math.IsNaN(lr) || math.IsInf(lr, 0) {
		return nil, fmt.Errorf("%w: learning rate must be positive, got %v", federated.ErrConfiguration, lr)
	}

	merged := make(federated.Delta)
	for p, d := range req.Deltas {
		if err := d.Validate(dim); err != nil {
			return nil, fmt.Errorf("participant %d: %w", p, err)
		}
		w := weights[p] * lr
		for _, id := range d.IDs() {
			acc, ok := merged[id]
			if !ok {
				acc = make(federated.Vector, dim)
				merged[id] = acc
			}
			for f, x := range d[id] {
				acc[f] += w * x
			}
		}
	}
	return merged, nil
}

// Aggregate applies req to items and returns the updated matrix. items is not
// modified; untouched rows are shared with the result.
//
// mech is required only when req.Privacy enables noise. seeder is required
// only when a delta references an id beyond the current matrix.
func Aggregate(
	items federated.ItemFactorMatrix,
	req Request,
	mech *privacy.Mechanism,
	seeder *federated.Seeder,
) (federated.ItemFactorMatrix, Summary, error) {
	summary := Summary{Participants: len(req.Deltas), RowsBefore: items.Len(), RowsAfter: items.Len()}

	if items.Dim <= 0 {
		return items, summary, fmt.Errorf("%w: latent dimension must be positive, got %d",
			federated.ErrConfiguration, items.Dim)
	}
	if err := req.Privacy.Validate(); err != nil {
		return items, summary, err
	}
	if req.Privacy.Epsilon != nil && mech == nil {
		return items, summary, fmt.Errorf("%w: server noise requested without a mechanism", federated.ErrConfiguration)
	}

	merged, err := Merge(items.Dim, req)
	if err != nil {
		return items, summary, err
	}
	if len(merged) == 0 {
		return items, summary, nil
	}

	if req.Privacy.ClipThreshold != nil {
		summary.Clipped = privacy.ClippedCount(merged, *req.Privacy.ClipThreshold)
	}
	if req.Privacy.Enabled() {
		if mech == nil {
			merged = privacy.ClipDelta(merged, *req.Privacy.ClipThreshold)
		} else {
			merged, err = mech.Privatize(merged, req.Privacy)
			if err != nil {
				return items, summary, err
			}
		}
		summary.Noised = req.Privacy.Epsilon != nil
	}

	if need := merged.MaxID() + 1; need > items.Len() {
		if seeder == nil {
			return items, summary, fmt.Errorf("%w: matrix growth to %d rows requires a seeder",
				federated.ErrConfiguration, need)
		}
		items = items.Grow(need, seeder)
	}

	rows := make([]federated.Vector, items.Len())
	copy(rows, items.Rows)
	for id, u := range merged {
		row := rows[id].Clone()
		for f := range row {
			row[f] += u[f]
		}
		rows[id] = row
	}

	summary.ItemsUpdated = len(merged)
	summary.RowsAfter = len(rows)
	return federated.ItemFactorMatrix{Dim: items.Dim, Rows: rows}, summary, nil
}
