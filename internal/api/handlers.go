// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package api

import (
	"context"
	"time"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/aggregation"
	"github.com/tomtom215/fedmf/internal/federated/round"
	"github.com/tomtom215/fedmf/internal/federated/storage"
)

// Coordinator is the subset of *round.Coordinator the handlers use.
type Coordinator interface {
	Scope() string
	Initialize(ctx context.Context, titles []string, priors map[string]float64, force bool) (*storage.ModelSnapshot, error)
	Snapshot(ctx context.Context) (*storage.ModelSnapshot, error)
	RegisterItem(ctx context.Context, title string) (id int, added bool, version uint64, err error)
	ApplyInteraction(ctx context.Context, delta federated.Delta) (*storage.ModelSnapshot, aggregation.Summary, error)
	OpenRound(ctx context.Context) (round.Round, error)
	Rounds() []round.Round
	Submit(ctx context.Context, roundID, participantID string, weight float64, delta federated.Delta) error
	CloseRound(ctx context.Context, roundID string) (*round.Result, error)
}

// ReadinessFunc reports whether a dependency is ready to serve.
type ReadinessFunc func(ctx context.Context) error

// Handler serves the coordinator endpoints.
type Handler struct {
	coord     Coordinator
	ready     []ReadinessFunc
	version   string
	startTime time.Time
}

// NewHandler creates a handler for coord. Each readiness check must pass for
// /health/ready to report ready.
func NewHandler(coord Coordinator, version string, ready ...ReadinessFunc) *Handler {
	return &Handler{
		coord:     coord,
		ready:     ready,
		version:   version,
		startTime: time.Now(),
	}
}
