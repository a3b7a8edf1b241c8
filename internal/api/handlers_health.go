// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/metrics"
	"github.com/tomtom215/fedmf/internal/models"
)

func (h *Handler) uptime() float64 {
	up := time.Since(h.startTime).Seconds()
	metrics.AppUptime.Set(up)
	return up
}

// HealthLive reports that the process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, r, http.StatusOK, models.HealthStatus{
		Status:  "alive",
		Version: h.version,
		Scope:   h.coord.Scope(),
		Uptime:  h.uptime(),
	}, 0)
}

// HealthReady reports whether the coordinator can accept rounds: every
// readiness check passes and the model scope is initialized.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.ready {
		if err := check(r.Context()); err != nil {
			respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, err.Error(), nil)
			return
		}
	}

	health := models.HealthStatus{
		Status:     "ready",
		Version:    h.version,
		Scope:      h.coord.Scope(),
		OpenRounds: len(h.coord.Rounds()),
		Uptime:     h.uptime(),
	}

	snap, err := h.coord.Snapshot(r.Context())
	switch {
	case errors.Is(err, federated.ErrNotFound):
		// Ready to be initialized; rounds cannot open yet.
		health.Status = "uninitialized"
	case err != nil:
		respondError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "model store unavailable", err)
		return
	default:
		health.ModelReady = true
		health.ModelVersion = snap.Version
	}

	respondSuccess(w, r, http.StatusOK, health, health.ModelVersion)
}
