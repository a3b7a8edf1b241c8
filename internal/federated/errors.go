// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package federated

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by all federated packages. Callers match them with
// errors.Is; implementations wrap them with context.
var (
	// ErrConfiguration indicates invalid parameters: an empty vocabulary, a
	// non-positive dimension, bad privacy settings or a user vector whose
	// dimension does not match the global matrix.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrNotFound indicates a persisted scope that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch indicates a vector operation between vectors of
	// different lengths.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidID indicates a negative or out-of-range item id.
	ErrInvalidID = errors.New("invalid item id")
)

// DimensionError describes a dimension mismatch in a named operation.
type DimensionError struct {
	Op   string
	Want int
	Got  int
}

// Error implements the error interface.
func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: dimension mismatch: want %d, got %d", e.Op, e.Want, e.Got)
}

// Unwrap allows errors.Is(err, ErrDimensionMismatch).
func (e *DimensionError) Unwrap() error {
	return ErrDimensionMismatch
}

// checkDim returns a *DimensionError when got != want.
func checkDim(op string, want, got int) error {
	if want != got {
		return &DimensionError{Op: op, Want: want, Got: got}
	}
	return nil
}
