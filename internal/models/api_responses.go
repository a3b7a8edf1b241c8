// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package models

import (
	"time"
)

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// APIResponse is the envelope of every coordinator response.
//
// Example successful response:
//
//	{
//	  "status": "success",
//	  "data": {"round_id": "6f1c...", "base_version": 3},
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z", "request_id": "b0e4..."}
//	}
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "data": null,
//	  "error": {"code": "ROUND_NOT_OPEN", "message": "round not open: 6f1c..."},
//	  "metadata": {"timestamp": "2026-03-01T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata describes the response itself.
type Metadata struct {
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
	ModelVersion uint64    `json:"model_version,omitempty"`
}

// APIError carries a machine-readable code and a human-readable message.
//
// Codes used by the coordinator:
//   - VALIDATION_ERROR: request body failed validation
//   - INVALID_REQUEST: malformed JSON or bad parameters
//   - NOT_FOUND: model scope not initialized
//   - ROUND_NOT_OPEN: unknown or closed round
//   - MODEL_EXISTS: initialize without force on an existing model
//   - DIMENSION_MISMATCH: a vector does not match the model dimension
//   - INTERNAL_ERROR: anything else
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements error so clients can return decoded API errors directly.
func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}

// HealthStatus is returned by the health endpoints.
type HealthStatus struct {
	Status       string  `json:"status"`
	Version      string  `json:"version"`
	Scope        string  `json:"scope"`
	ModelReady   bool    `json:"model_ready"`
	ModelVersion uint64  `json:"model_version,omitempty"`
	OpenRounds   int     `json:"open_rounds"`
	Uptime       float64 `json:"uptime_seconds"`
}
