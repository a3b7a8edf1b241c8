// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

// Package main is the FedMF participant command.
//
// A participant keeps its rating history and user vector on the device and
// only ever sends privatized item deltas to the coordinator.
//
// # Commands
//
//	participant contribute -ratings r.json [-id alice] [-round ID] [-weight W]
//	participant recommend  -ratings r.json [-id alice]
//	participant interact   -ratings r.json [-id alice] -title T -rating R -bucket B
//	participant simulate   -ratings r.json [-rounds N]
//
// contribute, recommend and interact talk to the coordinator at
// client.base_url. simulate runs a coordinator and every user in the ratings
// file in process, which is useful for tuning hyperparameters offline.
//
// The ratings file maps user ids to histories:
//
//	{"alice": [{"title": "Heat", "bucket": 40, "watch_count": 1, "rating": 4.5}]}
//
// Results are written to stdout as JSON. Configuration is loaded exactly as
// for the server (config.yaml plus FEDMF_* environment variables).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/fedmf/internal/config"
	"github.com/tomtom215/fedmf/internal/logging"
)

const usage = `usage: participant <command> [flags]

commands:
  contribute  train on the global model and submit a delta to a round
  recommend   rank titles locally against the global model
  interact    record a title chosen outside the recommendations
  simulate    run federated rounds in process for every user in a ratings file`

// errUsage marks command-line mistakes; main exits with status 2.
var errUsage = errors.New("usage error")

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.Logging.ToLogging())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = run(ctx, cfg, os.Args[1], os.Args[2:], os.Stdout)
	if errors.Is(err, errUsage) {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		stop()
		os.Exit(2) //nolint:gocritic // stop already called
	}
	if err != nil {
		stop()
		logging.Fatal().Err(err).Str("command", os.Args[1]).Msg("Command failed")
	}
}
