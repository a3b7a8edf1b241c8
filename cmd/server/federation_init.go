// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fedmf/internal/config"
	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/aggregation"
	"github.com/tomtom215/fedmf/internal/federated/growth"
	"github.com/tomtom215/fedmf/internal/federated/privacy"
	"github.com/tomtom215/fedmf/internal/federated/round"
	"github.com/tomtom215/fedmf/internal/federated/storage"
	"github.com/tomtom215/fedmf/internal/federated/training"
	"github.com/tomtom215/fedmf/internal/logging"
)

// federation holds the server-side components built from configuration.
type federation struct {
	store *storage.BadgerStore
	coord *round.Coordinator
}

// initFederation opens the factor store and wires the coordinator.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func initFederation(cfg *config.Config, logger zerolog.Logger) (*federation, error) {
	store, err := storage.Open(cfg.Storage.Options())
	if err != nil {
		return nil, err
	}

	jitterSeed, noiseSeed := cfg.Model.ServerSeeds()
	seeder := federated.NewSeeder(cfg.Model.JitterScale, jitterSeed)
	agg := aggregation.NewAggregator(store, privacy.NewMechanism(noiseSeed), seeder, logger)
	gh := growth.NewHandler(training.NewTrainer(logger), seeder, logger)

	coord := round.NewCoordinator(round.Config{
		Scope:        cfg.Model.Scope,
		Topic:        cfg.Round.Topic,
		LearningRate: cfg.Aggregation.LearningRate,
		MaxGrowth:    cfg.Aggregation.MaxGrowth,
		Privacy:      cfg.Aggregation.Params(),
		Dim:          cfg.Model.Dim,
	}, store, agg, gh, logging.NewWatermillAdapter(logger), logger)

	return &federation{store: store, coord: coord}, nil
}

// collectorReady fails until the delta collector has subscribed to the bus.
func (f *federation) collectorReady(_ context.Context) error {
	select {
	case <-f.coord.Collector().Ready():
		return nil
	default:
		return errors.New("delta collector not running")
	}
}

// Close shuts down the bus and the store.
func (f *federation) Close() error {
	var errs []error
	if err := f.coord.Shutdown(); err != nil {
		errs = append(errs, fmt.Errorf("shutdown coordinator: %w", err))
	}
	if err := f.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
