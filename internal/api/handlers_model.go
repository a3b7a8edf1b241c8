// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package api

import (
	"net/http"

	"github.com/tomtom215/fedmf/internal/logging"
	"github.com/tomtom215/fedmf/internal/models"
)

// InitializeModel creates the global model from a title list.
// An existing model is replaced only when force is set (409 otherwise).
func (h *Handler) InitializeModel(w http.ResponseWriter, r *http.Request) {
	var req models.InitializeModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	snap, err := h.coord.Initialize(r.Context(), req.Titles, req.Priors, req.Force)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Int("items", snap.Items.Len()).
		Bool("force", req.Force).
		Msg("Model initialized")
	respondSuccess(w, r, http.StatusCreated, models.ModelFromSnapshot(snap), snap.Version)
}

// GetModel returns the current model snapshot.
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	snap, err := h.coord.Snapshot(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, models.ModelFromSnapshot(snap), snap.Version)
}

// RegisterItem adds a title to the vocabulary, growing the matrix if needed.
// A new title answers 201, a known one 200.
func (h *Handler) RegisterItem(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id, added, version, err := h.coord.RegisterItem(r.Context(), req.Title)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	respondSuccess(w, r, status, models.RegisterItemResponse{ItemID: id, Added: added, Version: version}, version)
}

// ApplyInteraction merges a participant's one-step interaction delta.
func (h *Handler) ApplyInteraction(w http.ResponseWriter, r *http.Request) {
	var req models.InteractionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	snap, summary, err := h.coord.ApplyInteraction(r.Context(), req.Delta)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusOK, models.AggregationResponse{Version: snap.Version, Summary: summary}, snap.Version)
}
