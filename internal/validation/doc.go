// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

// Package validation wraps go-playground/validator v10 with a shared
// instance, readable messages and FedMF-specific rules.
//
// Field names in messages come from the koanf tag (configuration) or the json
// tag (API requests):
//
//	type registerItemRequest struct {
//	    Title string `json:"title" validate:"required,title"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	}
//
// Custom tags:
//   - title: the string is non-empty after title normalization (zero-width
//     spaces removed, whitespace trimmed)
package validation
