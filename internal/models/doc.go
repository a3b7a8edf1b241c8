// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

/*
Package models defines the JSON types exchanged between the coordinator API
and participant clients.

  - APIResponse: envelope with status, data, metadata and error
  - ModelResponse: model snapshot (vocabulary plus item-factor matrix)
  - InitializeModelRequest, RegisterItemRequest: model management
  - SubmitDeltaRequest, InteractionRequest: participant updates

Request types carry validator tags checked by internal/validation.
*/
package models
