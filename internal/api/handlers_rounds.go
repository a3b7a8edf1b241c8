// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/fedmf/internal/logging"
	"github.com/tomtom215/fedmf/internal/models"
)

// OpenRound starts a round against the current model version.
func (h *Handler) OpenRound(w http.ResponseWriter, r *http.Request) {
	rnd, err := h.coord.OpenRound(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondSuccess(w, r, http.StatusCreated, rnd, rnd.BaseVersion)
}

// ListRounds returns the open rounds, oldest first.
func (h *Handler) ListRounds(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, h.coord.Rounds(), 0)
}

// SubmitDelta accepts a participant's delta for an open round. It answers
// once the delta is persisted.
func (h *Handler) SubmitDelta(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundID")

	var req models.SubmitDeltaRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.coord.Submit(r.Context(), roundID, req.ParticipantID, req.Weight, req.Delta); err != nil {
		respondServiceError(w, r, err)
		return
	}

	respondSuccess(w, r, http.StatusAccepted, models.SubmitDeltaResponse{
		RoundID:       roundID,
		ParticipantID: req.ParticipantID,
		Items:         len(req.Delta),
	}, 0)
}

// CloseRound aggregates a round's deltas into the global model exactly once.
func (h *Handler) CloseRound(w http.ResponseWriter, r *http.Request) {
	roundID := chi.URLParam(r, "roundID")

	result, err := h.coord.CloseRound(r.Context(), roundID)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("round_id", sanitizeLogValue(roundID)).
		Int("participants", result.Summary.Participants).
		Uint64("version", result.Version).
		Msg("Round closed via API")
	respondSuccess(w, r, http.StatusOK, result, result.Version)
}
