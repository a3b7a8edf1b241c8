// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/privacy"
	"github.com/tomtom215/fedmf/internal/federated/storage"
	"github.com/tomtom215/fedmf/internal/metrics"
)

// Aggregator is the single writer of persisted models. Every mutation of a
// scope (aggregation, item registration, initialization) runs under that
// scope's lock as one load-modify-persist cycle, so concurrent rounds and
// growth events are serialized and never interleave partially.
type Aggregator struct {
	store  storage.Store
	mech   *privacy.Mechanism
	seeder *federated.Seeder
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewAggregator creates an Aggregator writing through store.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewAggregator(store storage.Store, mech *privacy.Mechanism, seeder *federated.Seeder, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		store:  store,
		mech:   mech,
		seeder: seeder,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Seeder returns the jitter source used for growth.
func (a *Aggregator) Seeder() *federated.Seeder {
	return a.seeder
}

// lockScope acquires the writer lock of scope and returns its release func.
func (a *Aggregator) lockScope(scope string) func() {
	a.mu.Lock()
	l, ok := a.locks[scope]
	if !ok {
		l = &sync.Mutex{}
		a.locks[scope] = l
	}
	a.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Update runs fn on the current snapshot of scope and persists the result
// with an incremented version. If fn returns an error nothing is persisted;
// for ErrNoChange the freshly loaded snapshot is returned instead of an error.
// fn must not retain snap after returning.
func (a *Aggregator) Update(ctx context.Context, scope string, fn func(snap *storage.ModelSnapshot) error) (*storage.ModelSnapshot, error) {
	unlock := a.lockScope(scope)
	defer unlock()

	snap, err := a.store.LoadModel(ctx, scope)
	if err != nil {
		return nil, err
	}
	if err := fn(snap); err != nil {
		if errors.Is(err, ErrNoChange) {
			return a.store.LoadModel(ctx, scope)
		}
		return nil, err
	}
	snap.Version++
	snap.UpdatedAt = time.Now().UTC()
	if err := a.store.PersistModel(ctx, snap); err != nil {
		return nil, err
	}
	metrics.SetModelShape(scope, snap.Items.Len(), snap.Vocabulary.Len(), snap.Version)
	return snap, nil
}

// Create persists a freshly initialized model as version 1. Unless replace is
// set, an existing model of the same scope is left untouched and
// ErrModelExists is returned.
func (a *Aggregator) Create(ctx context.Context, snap *storage.ModelSnapshot, replace bool) error {
	unlock := a.lockScope(snap.Scope)
	defer unlock()

	if !replace {
		if _, err := a.store.LoadModel(ctx, snap.Scope); err == nil {
			return fmt.Errorf("%w: scope %q", ErrModelExists, snap.Scope)
		}
	}
	snap.Version = 1
	snap.UpdatedAt = time.Now().UTC()
	if err := a.store.PersistModel(ctx, snap); err != nil {
		return err
	}
	metrics.SetModelShape(snap.Scope, snap.Items.Len(), snap.Vocabulary.Len(), snap.Version)
	a.logger.Info().
		Str("scope", snap.Scope).
		Int("items", snap.Items.Len()).
		Int("dim", snap.Items.Dim).
		Msg("Model initialized")
	return nil
}

// Apply aggregates req into scope and persists the new version atomically.
func (a *Aggregator) Apply(ctx context.Context, scope string, req Request) (*storage.ModelSnapshot, Summary, error) {
	start := time.Now()
	var summary Summary

	snap, err := a.Update(ctx, scope, func(snap *storage.ModelSnapshot) error {
		updated, s, err := Aggregate(snap.Items, req, a.mech, a.seeder)
		summary = s
		if err != nil {
			return err
		}
		snap.Items = updated
		return nil
	})
	metrics.RecordAggregation(scope, summary.Participants, summary.ItemsUpdated, summary.Clipped, time.Since(start), err)
	if err != nil {
		a.logger.Error().Err(err).Str("scope", scope).Int("participants", len(req.Deltas)).Msg("Aggregation failed")
		return nil, summary, fmt.Errorf("aggregate into %q: %w", scope, err)
	}

	a.logger.Info().
		Str("scope", scope).
		Uint64("version", snap.Version).
		Int("participants", summary.Participants).
		Int("items_updated", summary.ItemsUpdated).
		Int("rows", summary.RowsAfter).
		Bool("noised", summary.Noised).
		Dur("duration", time.Since(start)).
		Msg("Aggregation applied")
	return snap, summary, nil
}
