// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

// Package training runs local matrix-factorization SGD on a participant's
// private ratings and extracts the item delta to share with the coordinator.
//
// For each (item, rating) pair, in record order, one step updates both the
// user vector U and the item vector V[i] from their pre-step values:
//
//	err  = r - U.V[i]
//	U    += lr * (err*V[i] - reg*U)
//	V[i] += lr * (err*U   - reg*V[i])
//
// The trainer never mutates its inputs and uses no randomness, so equal
// inputs always produce equal outputs.
package training

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fedmf/internal/federated"
)

// Params configures local training.
type Params struct {
	// LearningRate is the SGD step size.
	// Default: 0.01.
	LearningRate float64

	// Regularization is the L2 penalty applied to both vectors.
	// Default: 0.1.
	Regularization float64

	// Iterations is the number of full passes over the ratings.
	// Default: 10.
	Iterations int
}

// DefaultParams returns the standard local training parameters.
func DefaultParams() Params {
	return Params{
		LearningRate:   0.01,
		Regularization: 0.1,
		Iterations:     10,
	}
}

// Validate rejects parameters that cannot train.
func (p Params) Validate() error {
	if p.Iterations < 0 {
		return fmt.Errorf("%w: iterations must be non-negative, got %d", federated.ErrConfiguration, p.Iterations)
	}
	if p.LearningRate < 0 || p.Regularization < 0 {
		return fmt.Errorf("%w: learning rate and regularization must be non-negative", federated.ErrConfiguration)
	}
	return nil
}

// Result is the outcome of one local training run.
type Result struct {
	// Items is the updated local copy of the item matrix. Untouched rows are
	// shared with the input snapshot.
	Items federated.ItemFactorMatrix

	// User is the updated user vector.
	User federated.Vector

	// Touched lists the trained item ids in ascending order.
	Touched []int

	// Delta holds Items[i] - input[i] for every touched item.
	Delta federated.Delta

	// Pairs is the number of (item, rating) pairs trained on.
	Pairs int

	// Skipped is the number of records whose titles did not resolve.
	Skipped int
}

// pair is one resolved training example.
type pair struct {
	item   int
	rating float64
}

// Trainer performs local SGD.
type Trainer struct {
	logger zerolog.Logger
}

// NewTrainer creates a trainer that logs through logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewTrainer(logger zerolog.Logger) *Trainer {
	return &Trainer{logger: logger}
}

// Train fits user and the rated rows of items to ratings.
//
// Records whose titles are not in vocab, or whose ids fall outside the
// matrix, are skipped and counted. An error is returned only for invalid
// parameters, a user vector whose length differs from items.Dim, or a
// canceled context.
func (t *Trainer) Train(
	ctx context.Context,
	ratings []federated.RatingRecord,
	vocab *federated.Vocabulary,
	items federated.ItemFactorMatrix,
	user federated.Vector,
	p Params,
) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if items.Dim <= 0 {
		return nil, fmt.Errorf("%w: latent dimension must be positive, got %d", federated.ErrConfiguration, items.Dim)
	}
	if len(user) != items.Dim {
		return nil, &federated.DimensionError{Op: "train user vector", Want: items.Dim, Got: len(user)}
	}

	pairs, skipped := t.resolve(ratings, vocab, items.Len())

	u := user.Clone()
	work := make(map[int]federated.Vector)
	for _, pr := range pairs {
		if _, ok := work[pr.item]; !ok {
			row, _ := items.Row(pr.item)
			work[pr.item] = row.Clone()
		}
	}

	for iter := 0; iter < p.Iterations; iter++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		for _, pr := range pairs {
			sgdStep(u, work[pr.item], pr.rating, p.LearningRate, p.Regularization)
		}
	}

	touched := make([]int, 0, len(work))
	for id := range work {
		touched = append(touched, id)
	}
	sort.Ints(touched)

	rows := make([]federated.Vector, items.Len())
	copy(rows, items.Rows)
	delta := make(federated.Delta, len(touched))
	for _, id := range touched {
		updated := work[id]
		rows[id] = updated
		d := make(federated.Vector, items.Dim)
		for f := range d {
			d[f] = updated[f] - items.Rows[id][f]
		}
		delta[id] = d
	}

	t.logger.Debug().
		Int("pairs", len(pairs)).
		Int("skipped", skipped).
		Int("touched", len(touched)).
		Int("iterations", p.Iterations).
		Msg("Local training complete")

	return &Result{
		Items:   federated.ItemFactorMatrix{Dim: items.Dim, Rows: rows},
		User:    u,
		Touched: touched,
		Delta:   delta,
		Pairs:   len(pairs),
		Skipped: skipped,
	}, nil
}

// resolve maps records to training pairs, preserving record order.
func (t *Trainer) resolve(ratings []federated.RatingRecord, vocab *federated.Vocabulary, rows int) ([]pair, int) {
	pairs := make([]pair, 0, len(ratings))
	skipped := 0
	for i := range ratings {
		rec := &ratings[i]
		id, ok := vocab.Lookup(rec.Title)
		if !ok || id >= rows {
			skipped++
			t.logger.Debug().Str("title", rec.Title).Msg("Skipping unresolved title")
			continue
		}
		pairs = append(pairs, pair{item: id, rating: rec.Rating})
	}
	return pairs, skipped
}

// sgdStep applies one SGD update to u and v in place. Both gradients use the
// values from before the step.
func sgdStep(u, v federated.Vector, rating, lr, reg float64) {
	var pred float64
	for f := range u {
		pred += u[f] * v[f]
	}
	e := rating - pred
	for f := range u {
		uf, vf := u[f], v[f]
		u[f] += lr * (e*vf - reg*uf)
		v[f] += lr * (e*uf - reg*vf)
	}
}
