// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fedmf/internal/federated/round"
)

// RoundCloser closes rounds that have been open for at least maxAge.
type RoundCloser interface {
	CloseExpired(ctx context.Context, maxAge time.Duration) ([]*round.Result, error)
}

// RoundSchedulerService closes expired rounds on a fixed interval. A round
// opened at time T is closed by the first tick at or after T+interval.
type RoundSchedulerService struct {
	closer   RoundCloser
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
	name     string
}

// NewRoundSchedulerService creates a scheduler ticking every interval.
// Each sweep may run for at most one interval.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRoundSchedulerService(closer RoundCloser, interval time.Duration, logger zerolog.Logger) *RoundSchedulerService {
	return &RoundSchedulerService{
		closer:   closer,
		interval: interval,
		timeout:  interval,
		logger:   logger.With().Str("service", "round-scheduler").Logger(),
		name:     "round-scheduler",
	}
}

// Serve implements suture.Service. A non-positive interval disables the
// scheduler and Serve just blocks until ctx ends.
func (s *RoundSchedulerService) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info().Msg("Round auto-close disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	s.logger.Info().Dur("interval", s.interval).Msg("Round scheduler starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Round scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RoundSchedulerService) sweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, err := s.closer.CloseExpired(sweepCtx, s.interval)
	if err != nil {
		s.logger.Warn().Err(err).Int("closed", len(results)).Msg("Round sweep finished with errors")
		return
	}
	for _, res := range results {
		s.logger.Info().
			Str("round_id", res.Round.ID).
			Uint64("version", res.Version).
			Int("submissions", res.Round.Submissions).
			Msg("Closed expired round")
	}
}

// String implements fmt.Stringer for suture's logs.
func (s *RoundSchedulerService) String() string {
	return s.name
}
