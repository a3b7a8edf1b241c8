// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package round

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/fedmf/internal/federated"
)

// DefaultParallelism bounds concurrent participant training in Simulate.
const DefaultParallelism = 8

// Simulate runs one complete round in process: open, train every participant
// in parallel against the same snapshot, submit, close. Participants without
// a rating history are left out of the round. parallelism <= 0 uses
// DefaultParallelism.
func (c *Coordinator) Simulate(ctx context.Context, participants []*Participant, parallelism int) (*Result, error) {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	r, err := c.OpenRound(ctx)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, p := range participants {
		g.Go(func() error {
			delta, err := p.Train(gctx, snap)
			if errors.Is(err, federated.ErrNotFound) {
				c.logger.Debug().Str("participant_id", p.ID()).Msg("Participant has no ratings, skipping")
				return nil
			}
			if err != nil {
				return fmt.Errorf("participant %s: %w", p.ID(), err)
			}
			return c.Submit(gctx, r.ID, p.ID(), 0, delta)
		})
	}
	if err := g.Wait(); err != nil {
		// Drop the partial round so its deltas are not aggregated later.
		c.discard(ctx, r.ID)
		return nil, err
	}
	return c.CloseRound(ctx, r.ID)
}

// discard abandons an open round without aggregating it.
func (c *Coordinator) discard(ctx context.Context, roundID string) {
	st, ok := c.round(roundID)
	if !ok {
		return
	}
	st.mu.Lock()
	st.closed = true
	st.mu.Unlock()

	c.mu.Lock()
	delete(c.rounds, roundID)
	c.mu.Unlock()

	if err := c.store.DeleteRound(ctx, roundID); err != nil {
		c.logger.Warn().Err(err).Str("round_id", roundID).Msg("Failed to discard round deltas")
	}
}
