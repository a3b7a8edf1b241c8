// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

// Package federated holds the shared model types for federated matrix
// factorization: latent vectors, the global item-factor matrix, sparse deltas,
// the title vocabulary and the jitter source used to seed new vectors.
//
// # Data Flow
//
// A round moves data between the two trust domains as follows:
//
//	coordinator                         participant
//	-----------                         -----------
//	ItemFactorMatrix (snapshot)  ---->  training.Trainer (local U, local V copy)
//	                                    privacy.Mechanism (clip + noise)
//	aggregation.Aggregate       <----  Delta (item rows only)
//	storage.Store (persist)
//
// User vectors never leave the participant. Only item deltas cross the
// boundary, optionally privatized before they are sent.
//
// # Sub-packages
//
//   - storage: durable key-scoped blobs (BadgerDB) and factor initialization
//   - training: local SGD producing per-item deltas
//   - privacy: clipping and Laplace/Gaussian noise
//   - aggregation: weighted merge of many deltas into the global matrix
//   - ranking: hybrid long-term/recent recommendation scoring
//   - growth: cold-start registration of unseen titles
//   - round: coordinator and participant orchestration
//
// # Thread Safety
//
// Vocabulary and Seeder are safe for concurrent use. ItemFactorMatrix and Delta
// values are treated as immutable once shared; every operation that changes
// them returns a new value.
package federated
