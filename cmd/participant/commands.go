// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/fedmf/internal/client"
	"github.com/tomtom215/fedmf/internal/config"
	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/growth"
	"github.com/tomtom215/fedmf/internal/federated/privacy"
	"github.com/tomtom215/fedmf/internal/federated/round"
	"github.com/tomtom215/fedmf/internal/federated/storage"
	"github.com/tomtom215/fedmf/internal/federated/training"
	"github.com/tomtom215/fedmf/internal/logging"
)

// run executes one command and writes its JSON result to out.
func run(ctx context.Context, cfg *config.Config, cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "contribute":
		return runContribute(ctx, cfg, args, out)
	case "recommend":
		return runRecommend(ctx, cfg, args, out)
	case "interact":
		return runInteract(ctx, cfg, args, out)
	case "simulate":
		return runSimulate(ctx, cfg, args, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// commonFlags are shared by the commands that act as a single participant.
type commonFlags struct {
	ratings string
	id      string
}

func newFlagSet(name string, cfg *config.Config, common *commonFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&common.ratings, "ratings", "", "path to the ratings JSON file")
	fs.StringVar(&common.id, "id", cfg.Client.ParticipantID, "participant (user) id")
	return fs
}

func parse(fs *flag.FlagSet, args []string, common *commonFlags) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if common.ratings == "" {
		return fmt.Errorf("%w: -ratings is required", errUsage)
	}
	return nil
}

// device bundles a remote participant and the resources backing it.
type device struct {
	store  *storage.BadgerStore
	client *client.Client
	runner *client.Runner
}

func (d *device) Close() {
	if err := d.store.Close(); err != nil {
		logging.Error().Err(err).Msg("Error closing local store")
	}
}

// openDevice loads the ratings, opens the local store and connects to the
// coordinator.
func openDevice(cfg *config.Config, common commonFlags) (*device, error) {
	if common.id == "" {
		return nil, fmt.Errorf("%w: -id or client.participant_id is required", errUsage)
	}
	ratings, err := loadRatings(common.ratings)
	if err != nil {
		return nil, err
	}

	c, err := client.New(client.Config{
		BaseURL:           cfg.Client.BaseURL,
		Timeout:           cfg.Client.Timeout,
		RequestsPerSecond: cfg.Client.RequestsPerSecond,
		Burst:             cfg.Client.Burst,
		BreakerFailures:   cfg.Client.BreakerFailures,
		BreakerTimeout:    cfg.Client.BreakerTimeout,
	})
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.Options())
	if err != nil {
		return nil, err
	}

	logger := logging.Logger()
	p := newParticipant(cfg, common.id, store, ratings, logger)
	return &device{store: store, client: c, runner: client.NewRunner(c, p, logger)}, nil
}

// newParticipant builds a participant from configuration.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func newParticipant(cfg *config.Config, id string, store storage.Store, ratings federated.RatingProvider, logger zerolog.Logger) *round.Participant {
	jitterSeed, noiseSeed := cfg.Model.ParticipantSeeds(id)
	seeder := federated.NewSeeder(cfg.Model.JitterScale, jitterSeed)
	trainer := training.NewTrainer(logger)
	return round.NewParticipant(id, round.ParticipantDeps{
		Store:   store,
		Ratings: ratings,
		Trainer: trainer,
		Mech:    privacy.NewMechanism(noiseSeed),
		Growth:  growth.NewHandler(trainer, seeder, logger),
		Seeder:  seeder,
	}, round.ParticipantConfig{
		Training: cfg.Training.Params(),
		Privacy:  cfg.Privacy.Params(),
		Ranking:  cfg.Recommend.Options(),
	}, logger)
}

func runContribute(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	var (
		common  commonFlags
		roundID string
		weight  float64
	)
	fs := newFlagSet("contribute", cfg, &common)
	fs.StringVar(&roundID, "round", "", "round id (default: the most recently opened round)")
	fs.Float64Var(&weight, "weight", 0, "aggregation weight (0 uses the coordinator default)")
	if err := parse(fs, args, &common); err != nil {
		return err
	}

	dev, err := openDevice(cfg, common)
	if err != nil {
		return err
	}
	defer dev.Close()

	if roundID == "" {
		roundID, err = latestRound(ctx, dev.client)
		if err != nil {
			return err
		}
	}

	items, err := dev.runner.Contribute(ctx, roundID, weight)
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]interface{}{
		"round_id": roundID,
		"items":    items,
	})
}

// latestRound returns the most recently opened round.
func latestRound(ctx context.Context, c *client.Client) (string, error) {
	rounds, err := c.ListRounds(ctx)
	if err != nil {
		return "", fmt.Errorf("list rounds: %w", err)
	}
	if len(rounds) == 0 {
		return "", fmt.Errorf("no open round: %w", round.ErrRoundNotOpen)
	}
	return rounds[len(rounds)-1].ID, nil
}

func runRecommend(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	var common commonFlags
	fs := newFlagSet("recommend", cfg, &common)
	if err := parse(fs, args, &common); err != nil {
		return err
	}

	dev, err := openDevice(cfg, common)
	if err != nil {
		return err
	}
	defer dev.Close()

	recs, err := dev.runner.Recommend(ctx)
	if err != nil {
		return err
	}
	return writeJSON(out, recs)
}

func runInteract(ctx context.Context, cfg *config.Config, args []string, out io.Writer) error {
	var (
		common commonFlags
		in     growth.Interaction
	)
	fs := newFlagSet("interact", cfg, &common)
	fs.StringVar(&in.Title, "title", "", "title that was watched")
	fs.Float64Var(&in.Rating, "rating", 0, "rating for the title")
	fs.IntVar(&in.Bucket, "bucket", 0, "time bucket of the interaction")
	if err := parse(fs, args, &common); err != nil {
		return err
	}
	if federated.NormalizeTitle(in.Title) == "" {
		return fmt.Errorf("%w: -title is required", errUsage)
	}

	dev, err := openDevice(cfg, common)
	if err != nil {
		return err
	}
	defer dev.Close()

	resp, err := dev.runner.Interact(ctx, in)
	if err != nil {
		return err
	}
	return writeJSON(out, resp)
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
