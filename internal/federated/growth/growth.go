// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

// Package growth handles titles the model has never seen. A new title gets
// the next vocabulary id and a jitter row; a single interaction with it is
// trained with the ordinary local trainer (one item, one iteration) and the
// resulting one-item delta is applied by the ordinary aggregator with weight
// 1 and learning rate 1.
package growth

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/aggregation"
	"github.com/tomtom215/fedmf/internal/federated/training"
	"github.com/tomtom215/fedmf/internal/metrics"
)

// Interaction is a single out-of-round user action on a title.
type Interaction struct {
	Title  string  `json:"title"`
	Rating float64 `json:"rating"`
	Bucket int     `json:"bucket"`
}

// Result is the local outcome of an interaction.
type Result struct {
	// ItemID is the vocabulary id of the title.
	ItemID int

	// Added reports whether the title was new.
	Added bool

	// Items is the updated local matrix (grown if needed, row trained).
	Items federated.ItemFactorMatrix

	// User is the updated user vector.
	User federated.Vector

	// Delta holds the single-item change to send to the coordinator.
	Delta federated.Delta
}

// Handler registers new titles and applies single interactions.
type Handler struct {
	trainer *training.Trainer
	seeder  *federated.Seeder
	logger  zerolog.Logger
}

// NewHandler creates a growth handler.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewHandler(trainer *training.Trainer, seeder *federated.Seeder, logger zerolog.Logger) *Handler {
	return &Handler{trainer: trainer, seeder: seeder, logger: logger}
}

// RegisterNewItem ensures title has an id in vocab and a row in items.
//
// An existing title returns its id with items unchanged. A new title is
// assigned max(existing)+1 and a jitter row is appended. If items is already
// longer than the new id (a row was added elsewhere first), that row is kept.
// vocab is updated in place; items is never modified.
func (h *Handler) RegisterNewItem(
	vocab *federated.Vocabulary,
	items federated.ItemFactorMatrix,
	title string,
) (id int, updated federated.ItemFactorMatrix, added bool, err error) {
	id, added, err = vocab.Register(title)
	if err != nil {
		return 0, items, false, fmt.Errorf("register %q: %w", title, err)
	}
	if items.Len() <= id {
		items = items.Grow(id+1, h.seeder)
	}
	if added {
		metrics.RecordItemGrowth()
		h.logger.Info().Str("title", title).Int("item_id", id).Int("rows", items.Len()).Msg("Registered new item")
	}
	return id, items, added, nil
}

// Interact registers the interaction's title if needed and trains one SGD
// step on it. Only LearningRate and Regularization of p are used.
func (h *Handler) Interact(
	ctx context.Context,
	vocab *federated.Vocabulary,
	items federated.ItemFactorMatrix,
	user federated.Vector,
	in Interaction,
	p training.Params,
) (*Result, error) {
	id, items, added, err := h.RegisterNewItem(vocab, items, in.Title)
	if err != nil {
		return nil, err
	}

	step := training.Params{LearningRate: p.LearningRate, Regularization: p.Regularization, Iterations: 1}
	res, err := h.trainer.Train(ctx,
		[]federated.RatingRecord{{Title: in.Title, Bucket: in.Bucket, WatchCount: 1, Rating: in.Rating}},
		vocab, items, user, step)
	if err != nil {
		return nil, fmt.Errorf("interaction step for %q: %w", in.Title, err)
	}

	return &Result{
		ItemID: id,
		Added:  added,
		Items:  res.Items,
		User:   res.User,
		Delta:  res.Delta,
	}, nil
}

// ServerRequest wraps a single-interaction delta for the aggregator: one
// participant, weight 1, learning rate 1, no server-side privacy.
func ServerRequest(delta federated.Delta) aggregation.Request {
	return aggregation.Request{
		Deltas:       []federated.Delta{delta},
		Weights:      []float64{1},
		LearningRate: 1,
	}
}
