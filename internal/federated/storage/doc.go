// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

// Package storage is the factor store: it seeds, loads and persists the
// global item-factor matrix, per-user factor vectors and the transient delta
// blobs of open rounds.
//
// # Key Layout
//
//	model:<scope>:items            item-factor matrix (JSON)
//	model:<scope>:vocab            ordered title list (JSON)
//	model:<scope>:meta             version, dimension, row count
//	user:<userID>:factors          private user vector
//	round:<roundID>:delta:<pid>    submitted delta awaiting aggregation
//
// The three model keys of a scope are always written in one BadgerDB
// transaction, so a failed persist leaves the previous version intact.
//
// # Initialization
//
// InitializeItemFactors seeds one row per vocabulary title. A title with a
// scalar prior (for example a popularity score) is mapped to a vector by a
// PriorSeeder before jitter is added; titles without a prior get jitter only.
package storage
