// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fedmf/internal/federated/growth"
	"github.com/tomtom215/fedmf/internal/federated/ranking"
	"github.com/tomtom215/fedmf/internal/federated/round"
	"github.com/tomtom215/fedmf/internal/federated/storage"
	"github.com/tomtom215/fedmf/internal/models"
)

// Runner drives a local participant against a remote coordinator. Ratings
// and the user vector never leave the participant; only deltas are sent.
type Runner struct {
	client      *Client
	participant *round.Participant
	logger      zerolog.Logger

	mu    sync.Mutex
	model *storage.ModelSnapshot // local copy, synced on every fetch
}

// NewRunner pairs a client with a local participant.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRunner(c *Client, p *round.Participant, logger zerolog.Logger) *Runner {
	return &Runner{
		client:      c,
		participant: p,
		logger:      logger.With().Str("participant_id", p.ID()).Logger(),
	}
}

// Contribute trains on the current global model and submits the privatized
// delta to roundID. It returns the number of items in the submitted delta.
func (r *Runner) Contribute(ctx context.Context, roundID string, weight float64) (int, error) {
	snap, err := r.refresh(ctx)
	if err != nil {
		return 0, err
	}

	delta, err := r.participant.Train(ctx, snap)
	if err != nil {
		return 0, fmt.Errorf("train: %w", err)
	}

	if err := r.client.SubmitDelta(ctx, roundID, r.participant.ID(), weight, delta); err != nil {
		return 0, fmt.Errorf("submit delta: %w", err)
	}

	r.logger.Info().
		Str("round_id", roundID).
		Int("items", len(delta)).
		Uint64("base_version", snap.Version).
		Msg("Delta submitted")
	return len(delta), nil
}

// Recommend ranks titles locally against the current global model.
func (r *Runner) Recommend(ctx context.Context) ([]ranking.Scored, error) {
	snap, err := r.refresh(ctx)
	if err != nil {
		return nil, err
	}
	return r.participant.Recommend(ctx, snap)
}

// refresh fetches the global model and reconciles the local copy with it.
// A local copy that conflicts with the coordinator is replaced.
func (r *Runner) refresh(ctx context.Context) (*storage.ModelSnapshot, error) {
	fetched, err := r.client.FetchModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch model: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.model == nil || r.model.Scope != fetched.Scope {
		r.model = fetched
		return r.model, nil
	}
	if err := r.participant.Sync(r.model, fetched); err != nil {
		r.logger.Warn().Err(err).Msg("Local model diverged from the coordinator, replacing it")
		r.model = fetched
	}
	return r.model, nil
}

// Interact handles a title chosen outside the recommendations: the title is
// registered with the coordinator (growing the global matrix if new), one
// local training step runs against the updated model, and the resulting
// single-item delta is sent back.
func (r *Runner) Interact(ctx context.Context, in growth.Interaction) (*models.AggregationResponse, error) {
	item, err := r.client.RegisterItem(ctx, in.Title)
	if err != nil {
		return nil, fmt.Errorf("register item: %w", err)
	}

	snap, err := r.refresh(ctx)
	if err != nil {
		return nil, err
	}

	res, err := r.participant.Interact(ctx, snap, in)
	if err != nil {
		return nil, fmt.Errorf("interact: %w", err)
	}

	resp, err := r.client.ApplyInteraction(ctx, res.Delta)
	if err != nil {
		return nil, fmt.Errorf("apply interaction: %w", err)
	}

	r.logger.Info().
		Str("title", in.Title).
		Int("item_id", item.ItemID).
		Bool("new_item", item.Added).
		Uint64("version", resp.Version).
		Msg("Interaction applied")
	return resp, nil
}
