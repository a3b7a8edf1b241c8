// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package storage

import (
	"context"
	"time"

	"github.com/tomtom215/fedmf/internal/federated"
)

// DefaultScope is the scope of the shared global model.
const DefaultScope = "global"

// ModelSnapshot is one persisted version of a scope's model: the item-factor
// matrix together with the vocabulary whose ids index its rows.
type ModelSnapshot struct {
	Scope      string
	Version    uint64
	Items      federated.ItemFactorMatrix
	Vocabulary *federated.Vocabulary
	UpdatedAt  time.Time
}

// RoundDelta is a participant's submission held until its round closes.
type RoundDelta struct {
	ParticipantID string          `json:"participant_id"`
	Weight        float64         `json:"weight,omitempty"`
	Delta         federated.Delta `json:"delta"`
	SubmittedAt   time.Time       `json:"submitted_at"`
}

// Store persists factor state under key scopes. Every Persist call is an
// atomic overwrite: readers observe either the previous value or the new
// one, never a mix. Loading an absent scope returns federated.ErrNotFound.
type Store interface {
	// LoadModel returns the matrix, vocabulary and version of scope.
	LoadModel(ctx context.Context, scope string) (*ModelSnapshot, error)

	// PersistModel writes matrix, vocabulary and version in one transaction.
	PersistModel(ctx context.Context, snap *ModelSnapshot) error

	// LoadItemFactors returns only the matrix of scope.
	LoadItemFactors(ctx context.Context, scope string) (federated.ItemFactorMatrix, error)

	// LoadVocabulary returns only the vocabulary of scope.
	LoadVocabulary(ctx context.Context, scope string) (*federated.Vocabulary, error)

	// LoadUserFactors returns a user's private vector.
	LoadUserFactors(ctx context.Context, userID string) (federated.Vector, error)

	// PersistUserFactors overwrites a user's private vector.
	PersistUserFactors(ctx context.Context, userID string, v federated.Vector) error

	// SaveRoundDelta stores or replaces a participant's submission for a round.
	SaveRoundDelta(ctx context.Context, roundID string, rd RoundDelta) error

	// LoadRoundDeltas returns all submissions of a round sorted by participant id.
	LoadRoundDeltas(ctx context.Context, roundID string) ([]RoundDelta, error)

	// DeleteRound removes every submission of a round.
	DeleteRound(ctx context.Context, roundID string) error

	// Close releases the underlying database.
	Close() error
}
