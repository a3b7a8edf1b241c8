// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/fedmf/internal/config"
	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/aggregation"
	"github.com/tomtom215/fedmf/internal/federated/growth"
	"github.com/tomtom215/fedmf/internal/federated/privacy"
	"github.com/tomtom215/fedmf/internal/federated/ranking"
	"github.com/tomtom215/fedmf/internal/federated/round"
	"github.com/tomtom215/fedmf/internal/federated/storage"
	"github.com/tomtom215/fedmf/internal/federated/training"
	"github.com/tomtom215/fedmf/internal/logging"
)

// simulation is the JSON result of the simulate command.
type simulation struct {
	Titles          int                         `json:"titles"`
	Rounds          []*round.Result             `json:"rounds"`
	Recommendations map[string][]ranking.Scored `json:"recommendations"`
}

// runSimulate runs -rounds federated rounds in process. The coordinator and
// all participants share one in-memory store; user vectors are keyed per user
// so nothing leaks between participants.
func runSimulate(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	var (
		ratingsPath string
		rounds      int
	)
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&ratingsPath, "ratings", "", "path to the ratings JSON file")
	fs.IntVar(&rounds, "rounds", 1, "number of rounds to run")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if ratingsPath == "" {
		return fmt.Errorf("%w: -ratings is required", errUsage)
	}
	if rounds < 1 {
		return fmt.Errorf("%w: -rounds must be at least 1", errUsage)
	}

	ratings, err := loadRatings(ratingsPath)
	if err != nil {
		return err
	}

	store, err := storage.Open(storage.Options{InMemory: true})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing simulation store")
		}
	}()

	logger := logging.Logger()
	jitterSeed, noiseSeed := cfg.Model.ServerSeeds()
	seeder := federated.NewSeeder(cfg.Model.JitterScale, jitterSeed)
	agg := aggregation.NewAggregator(store, privacy.NewMechanism(noiseSeed), seeder, logger)
	coord := round.NewCoordinator(round.Config{
		Scope:        cfg.Model.Scope,
		Topic:        cfg.Round.Topic,
		LearningRate: cfg.Aggregation.LearningRate,
		MaxGrowth:    cfg.Aggregation.MaxGrowth,
		Privacy:      cfg.Aggregation.Params(),
		Dim:          cfg.Model.Dim,
	}, store, agg, growth.NewHandler(training.NewTrainer(logger), seeder, logger),
		logging.NewWatermillAdapter(logger), logger)

	collectorCtx, stopCollector := context.WithCancel(ctx)
	collectorDone := make(chan error, 1)
	go func() { collectorDone <- coord.Collector().Serve(collectorCtx) }()
	defer func() {
		stopCollector()
		if err := <-collectorDone; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Collector stopped with error")
		}
		if err := coord.Shutdown(); err != nil {
			logging.Error().Err(err).Msg("Error shutting down coordinator")
		}
	}()

	select {
	case <-coord.Collector().Ready():
	case err := <-collectorDone:
		return fmt.Errorf("start collector: %w", err)
	case <-time.After(10 * time.Second):
		return errors.New("start collector: timed out")
	}

	all := titles(ratings)
	if _, err := coord.InitializeFrom(ctx, federated.StaticVocabulary(all), nil, false); err != nil {
		return fmt.Errorf("initialize model: %w", err)
	}

	ids := users(ratings)
	participants := make([]*round.Participant, 0, len(ids))
	for _, id := range ids {
		participants = append(participants, newParticipant(cfg, id, store, ratings, logger))
	}

	result := simulation{
		Titles:          len(all),
		Recommendations: make(map[string][]ranking.Scored, len(ids)),
	}
	for i := 0; i < rounds; i++ {
		res, err := coord.Simulate(ctx, participants, cfg.Round.Parallelism)
		if err != nil {
			return fmt.Errorf("round %d: %w", i+1, err)
		}
		logging.Info().
			Int("round", i+1).
			Uint64("version", res.Version).
			Int("participants", res.Summary.Participants).
			Msg("Simulated round closed")
		result.Rounds = append(result.Rounds, res)
	}

	snap, err := coord.Snapshot(ctx)
	if err != nil {
		return err
	}
	for _, p := range participants {
		recs, err := p.Recommend(ctx, snap)
		if err != nil {
			return fmt.Errorf("recommend for %s: %w", p.ID(), err)
		}
		result.Recommendations[p.ID()] = recs
	}

	return writeJSON(out, result)
}
