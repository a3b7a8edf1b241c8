// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package aggregation

import "errors"

// ErrModelExists is returned by Create when the scope already has a model.
var ErrModelExists = errors.New("model already exists")

// ErrNoChange may be returned by an Update callback to leave the snapshot
// unpersisted at its current version. Update itself then returns no error.
var ErrNoChange = errors.New("no change")
