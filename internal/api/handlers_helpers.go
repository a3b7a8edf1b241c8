// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/aggregation"
	"github.com/tomtom215/fedmf/internal/federated/round"
	"github.com/tomtom215/fedmf/internal/logging"
	"github.com/tomtom215/fedmf/internal/models"
	"github.com/tomtom215/fedmf/internal/validation"
)

// maxBodyBytes bounds request bodies. A delta for every item of a large
// catalog at a high dimension stays well below it.
const maxBodyBytes = 32 << 20

// Error codes
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeRoundNotOpen       = "ROUND_NOT_OPEN"
	ErrCodeModelExists        = "MODEL_EXISTS"
	ErrCodeDimensionMismatch  = "DIMENSION_MISMATCH"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeTimeout            = "TIMEOUT"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// sanitizeLogValue removes control characters from strings to prevent log injection.
func sanitizeLogValue(s string) string {
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&result, "\\x%02x", r)
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// respondJSON sends a JSON response with proper headers
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondSuccess wraps data in a success envelope.
func respondSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}, version uint64) {
	respondJSON(w, status, &models.APIResponse{
		Status: models.StatusSuccess,
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:    time.Now().UTC(),
			RequestID:    logging.RequestIDFromContext(r.Context()),
			ModelVersion: version,
		},
	})
}

// respondError writes an error envelope. err, when set, is logged but never
// sent to the client beyond message.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Error().
			Str("code", code).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status: models.StatusError,
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
			RequestID: logging.RequestIDFromContext(r.Context()),
		},
		Error: &models.APIError{Code: code, Message: message},
	})
}

// statusForError maps federated sentinel errors to an HTTP status and code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, federated.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, round.ErrRoundNotOpen):
		return http.StatusNotFound, ErrCodeRoundNotOpen
	case errors.Is(err, aggregation.ErrModelExists):
		return http.StatusConflict, ErrCodeModelExists
	case errors.Is(err, federated.ErrDimensionMismatch):
		return http.StatusBadRequest, ErrCodeDimensionMismatch
	case errors.Is(err, federated.ErrConfiguration), errors.Is(err, federated.ErrInvalidID):
		return http.StatusBadRequest, ErrCodeInvalidRequest
	case errors.Is(err, round.ErrBusClosed), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, ErrCodeServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// respondServiceError translates err into an error envelope. Client errors
// echo the error text; server errors get a generic message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		respondError(w, r, status, code, "request could not be completed", err)
		return
	}
	respondError(w, r, status, code, err.Error(), nil)
}

// decodeJSON reads a bounded JSON body into dst and validates it.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, r, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body", nil)
		return false
	}
	if apiErr := validateRequest(dst); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status: models.StatusError,
			Metadata: models.Metadata{
				Timestamp: time.Now().UTC(),
				RequestID: logging.RequestIDFromContext(r.Context()),
			},
			Error: apiErr,
		})
		return false
	}
	return true
}

// validateRequest validates a struct using go-playground/validator.
// Returns nil if validation passes.
func validateRequest(v interface{}) *models.APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}
	apiErr := validationErr.ToAPIError()
	return &models.APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}
