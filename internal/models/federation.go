// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package models

import (
	"time"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/aggregation"
	"github.com/tomtom215/fedmf/internal/federated/storage"
)

// InitializeModelRequest creates the global model from a title list.
type InitializeModelRequest struct {
	Titles []string           `json:"titles" validate:"required,min=1,dive,title"`
	Priors map[string]float64 `json:"priors,omitempty"`
	Force  bool               `json:"force,omitempty"`
}

// ModelResponse is the wire form of a model snapshot. Vocabulary ids are the
// positions in the title list and index Items.Rows.
type ModelResponse struct {
	Scope      string                     `json:"scope"`
	Version    uint64                     `json:"version"`
	Vocabulary *federated.Vocabulary      `json:"vocabulary"`
	Items      federated.ItemFactorMatrix `json:"items"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// ModelFromSnapshot converts a stored snapshot for the wire.
func ModelFromSnapshot(snap *storage.ModelSnapshot) *ModelResponse {
	return &ModelResponse{
		Scope:      snap.Scope,
		Version:    snap.Version,
		Vocabulary: snap.Vocabulary,
		Items:      snap.Items,
		UpdatedAt:  snap.UpdatedAt,
	}
}

// Snapshot converts the wire form back to a snapshot. A missing vocabulary
// becomes an empty one.
func (m *ModelResponse) Snapshot() *storage.ModelSnapshot {
	vocab := m.Vocabulary
	if vocab == nil {
		vocab = federated.NewVocabulary()
	}
	return &storage.ModelSnapshot{
		Scope:      m.Scope,
		Version:    m.Version,
		Items:      m.Items,
		Vocabulary: vocab,
		UpdatedAt:  m.UpdatedAt,
	}
}

// RegisterItemRequest adds a title to the global vocabulary.
type RegisterItemRequest struct {
	Title string `json:"title" validate:"required,title,max=512"`
}

// RegisterItemResponse reports the id assigned to a title.
type RegisterItemResponse struct {
	ItemID  int    `json:"item_id"`
	Added   bool   `json:"added"`
	Version uint64 `json:"version"`
}

// SubmitDeltaRequest is one participant's contribution to a round.
type SubmitDeltaRequest struct {
	ParticipantID string          `json:"participant_id" validate:"required,max=128"`
	Weight        float64         `json:"weight,omitempty" validate:"gte=0"`
	Delta         federated.Delta `json:"delta" validate:"required"`
}

// SubmitDeltaResponse acknowledges a persisted submission.
type SubmitDeltaResponse struct {
	RoundID       string `json:"round_id"`
	ParticipantID string `json:"participant_id"`
	Items         int    `json:"items"`
}

// InteractionRequest carries the one-step delta of an out-of-round interaction.
type InteractionRequest struct {
	Delta federated.Delta `json:"delta" validate:"required"`
}

// AggregationResponse reports a model update.
type AggregationResponse struct {
	Version uint64              `json:"version"`
	Summary aggregation.Summary `json:"summary"`
}
