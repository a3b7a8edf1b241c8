// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package client

import (
	"fmt"
	"net/http"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/aggregation"
	"github.com/tomtom215/fedmf/internal/federated/round"
	"github.com/tomtom215/fedmf/internal/models"
)

// StatusError is a non-2xx coordinator response. It unwraps to the matching
// federated sentinel error when the error code has one, so callers can use
// errors.Is on client errors the same way as on local ones.
type StatusError struct {
	StatusCode int
	API        *models.APIError
}

func (e *StatusError) Error() string {
	if e.API == nil {
		return fmt.Sprintf("coordinator returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("coordinator returned %d: %s", e.StatusCode, e.API.Error())
}

// Unwrap maps the API error code to a sentinel.
func (e *StatusError) Unwrap() error {
	if e.API == nil {
		return nil
	}
	switch e.API.Code {
	case "NOT_FOUND":
		return federated.ErrNotFound
	case "ROUND_NOT_OPEN":
		return round.ErrRoundNotOpen
	case "MODEL_EXISTS":
		return aggregation.ErrModelExists
	case "DIMENSION_MISMATCH":
		return federated.ErrDimensionMismatch
	case "INVALID_REQUEST", "VALIDATION_ERROR":
		return federated.ErrConfiguration
	default:
		return nil
	}
}

// serverFault reports whether the response should count against the
// circuit breaker. Rejected requests are the caller's fault, not the server's.
func (e *StatusError) serverFault() bool {
	return e.StatusCode >= http.StatusInternalServerError
}
