// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package round

import "errors"

var (
	// ErrRoundNotOpen is returned when submitting to or closing a round that
	// is unknown or already closed.
	ErrRoundNotOpen = errors.New("round not open")

	// ErrBusClosed is returned when the coordinator has been closed.
	ErrBusClosed = errors.New("delta bus closed")
)
