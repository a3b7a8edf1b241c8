// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

// Package main runs the FedMF coordinator.
//
// The coordinator owns the global item-factor matrix. Participants fetch it,
// train locally on private rating histories and submit privatized deltas to
// an open round; closing the round aggregates them into a new model version.
//
// # Startup
//
//  1. Configuration: defaults, config.yaml, environment (koanf v2)
//  2. Logging: zerolog with the configured level and format
//  3. Factor store: BadgerDB at storage.path (or in memory)
//  4. Coordinator: aggregator, growth handler, in-process delta bus
//  5. Supervisor tree: delta collector, round scheduler, HTTP server
//
// # Configuration
//
// See internal/config for every key. Common overrides:
//
//	HTTP_PORT=8471
//	FEDMF_STORAGE_PATH=/data/fedmf
//	FEDMF_MODEL_DIM=10
//	FEDMF_ROUND_AUTO_CLOSE_INTERVAL=10m
//	LOG_LEVEL=debug LOG_FORMAT=console
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains for
// up to 10s, then the bus and the store are closed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/fedmf/internal/api"
	"github.com/tomtom215/fedmf/internal/config"
	"github.com/tomtom215/fedmf/internal/logging"
	"github.com/tomtom215/fedmf/internal/metrics"
	"github.com/tomtom215/fedmf/internal/supervisor"
	"github.com/tomtom215/fedmf/internal/supervisor/services"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging.ToLogging())
	logger := logging.Logger()

	logging.Info().
		Str("version", version).
		Str("config", cfg.String()).
		Msg("Starting FedMF coordinator")
	metrics.SetAppInfo(version, runtime.Version())

	if cfg.HasWildcardCORS() {
		logging.Warn().Msg("CORS allows any origin; restrict server.cors_origins in production")
	}

	fed, err := initFederation(cfg, logging.WithComponent("federation"))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize federation")
	}
	defer func() {
		if err := fed.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing federation")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logger), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	handler := api.NewHandler(fed.coord, version, fed.collectorReady)
	mw := api.NewChiMiddlewareFromServer(
		cfg.Server.CORSOrigins,
		cfg.Server.RateLimitReqs,
		cfg.Server.RateLimitWindow,
		cfg.Server.RateLimitDisabled,
	)
	router := api.NewRouter(handler, mw)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}

	tree.AddDataService(fed.coord.Collector())
	tree.AddFederationService(services.NewRoundSchedulerService(fed.coord, cfg.Round.AutoCloseInterval, logging.WithComponent("round-scheduler")))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		err = <-errCh
	case err = <-errCh:
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	logging.Info().Msg("Coordinator stopped")
}
