// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package federated

import (
	"gonum.org/v1/gonum/floats"
)

// Dot returns the inner product of a and b.
func Dot(a, b Vector) (float64, error) {
	if err := checkDim("dot", len(a), len(b)); err != nil {
		return 0, err
	}
	return floats.Dot(a, b), nil
}

// Add returns a + b as a new vector.
func Add(a, b Vector) (Vector, error) {
	if err := checkDim("add", len(a), len(b)); err != nil {
		return nil, err
	}
	out := make(Vector, len(a))
	floats.AddTo(out, a, b)
	return out, nil
}

// Sub returns a - b as a new vector.
func Sub(a, b Vector) (Vector, error) {
	if err := checkDim("sub", len(a), len(b)); err != nil {
		return nil, err
	}
	out := make(Vector, len(a))
	floats.SubTo(out, a, b)
	return out, nil
}

// Scale returns c*v as a new vector.
func Scale(c float64, v Vector) Vector {
	out := make(Vector, len(v))
	floats.ScaleTo(out, c, v)
	return out
}

// Norm returns the L2 norm of v.
func Norm(v Vector) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}

// Mean returns the element-wise mean of vs. All vectors must have length dim.
// An empty input yields nil.
func Mean(dim int, vs ...Vector) (Vector, error) {
	if len(vs) == 0 {
		return nil, nil
	}
	sum := make(Vector, dim)
	for _, v := range vs {
		if err := checkDim("mean", dim, len(v)); err != nil {
			return nil, err
		}
		floats.Add(sum, v)
	}
	floats.Scale(1/float64(len(vs)), sum)
	return sum, nil
}
