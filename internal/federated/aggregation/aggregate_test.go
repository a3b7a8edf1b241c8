// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package aggregation

import (
	"errors"
	"math"
	"testing"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/privacy"
)

const eps = 1e-12

func baseMatrix() federated.ItemFactorMatrix {
	return federated.ItemFactorMatrix{Dim: 2, Rows: []federated.Vector{
		{1, 1},
		{0, 0},
		{-1, 2},
	}}
}

func assertVec(t *testing.T, name string, got, want federated.Vector) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len = %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > eps {
			t.Errorf("%s = %v, want %v", name, got, want)
			return
		}
	}
}

func TestAggregate_UniformWeightsIsMean(t *testing.T) {
	t.Parallel()

	req := Request{
		Deltas: []federated.Delta{
			{0: {0.2, 0.4}},
			{0: {0.4, 0.0}, 2: {1, 1}},
		},
	}

	got, summary, err := Aggregate(baseMatrix(), req, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	// item 0: mean of both deltas; item 2: only one participant touched it,
	// the other contributes zero
	assertVec(t, "row 0", got.Rows[0], federated.Vector{1.3, 1.2})
	assertVec(t, "row 1", got.Rows[1], federated.Vector{0, 0})
	assertVec(t, "row 2", got.Rows[2], federated.Vector{-0.5, 2.5})

	if summary.Participants != 2 || summary.ItemsUpdated != 2 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestAggregate_LinearityWithoutPrivacy(t *testing.T) {
	t.Parallel()

	deltas := []federated.Delta{
		{0: {0.3, -0.1}, 1: {0.5, 0.5}},
		{1: {-0.2, 0.1}},
		{0: {0.1, 0.1}, 2: {0, -0.3}},
	}
	weights := []float64{0.5, 0.25, 0.25}
	lr := 0.8

	got, _, err := Aggregate(baseMatrix(), Request{Deltas: deltas, Weights: weights, LearningRate: lr}, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	base := baseMatrix()
	for id := 0; id < base.Len(); id++ {
		want := base.Rows[id].Clone()
		for p, d := range deltas {
			if v, ok := d[id]; ok {
				for f := range want {
					want[f] += lr * weights[p] * v[f]
				}
			}
		}
		assertVec(t, "row", got.Rows[id], want)
	}
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	m := baseMatrix()
	_, _, err := Aggregate(m, Request{Deltas: []federated.Delta{{0: {5, 5}}}}, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	assertVec(t, "input row 0", m.Rows[0], federated.Vector{1, 1})
}

func TestAggregate_GrowsForOutOfRangeIDs(t *testing.T) {
	t.Parallel()

	seeder := federated.NewSeeder(0.01, 9)
	req := Request{Deltas: []federated.Delta{{5: {1, 1}}}}

	got, summary, err := Aggregate(baseMatrix(), req, nil, seeder)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if got.Len() != 6 || summary.RowsBefore != 3 || summary.RowsAfter != 6 {
		t.Fatalf("Len() = %d, summary = %+v; want 6 rows", got.Len(), summary)
	}
	for id := 3; id < 5; id++ {
		if federated.Norm(got.Rows[id]) > 0.1 {
			t.Errorf("padding row %d = %v, want jitter", id, got.Rows[id])
		}
	}
	if math.Abs(got.Rows[5][0]-1) > 0.1 {
		t.Errorf("grown row 5 = %v, want ~[1 1]", got.Rows[5])
	}

	if _, _, err := Aggregate(baseMatrix(), req, nil, nil); !errors.Is(err, federated.ErrConfiguration) {
		t.Errorf("growth without seeder error = %v, want ErrConfiguration", err)
	}
}

func TestAggregate_ServerClipping(t *testing.T) {
	t.Parallel()

	req := Request{
		Deltas:  []federated.Delta{{1: {3, 4}}},
		Privacy: privacy.Params{ClipThreshold: privacy.Float(0.5)},
	}
	got, summary, err := Aggregate(baseMatrix(), req, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	assertVec(t, "row 1", got.Rows[1], federated.Vector{0.3, 0.4})
	if summary.Clipped != 1 || summary.Noised {
		t.Errorf("summary = %+v", summary)
	}
}

func TestAggregate_ServerNoise(t *testing.T) {
	t.Parallel()

	req := Request{
		Deltas:  []federated.Delta{{0: {0, 0}}},
		Privacy: privacy.Params{Epsilon: privacy.Float(1), Sensitivity: 0.36},
	}

	if _, _, err := Aggregate(baseMatrix(), req, nil, nil); !errors.Is(err, federated.ErrConfiguration) {
		t.Fatalf("noise without mechanism error = %v, want ErrConfiguration", err)
	}

	got, summary, err := Aggregate(baseMatrix(), req, privacy.NewMechanism(1), nil)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if !summary.Noised {
		t.Error("summary.Noised = false")
	}
	if got.Rows[0][0] == 1 && got.Rows[0][1] == 1 {
		t.Error("noise was not applied to touched row")
	}
	assertVec(t, "untouched row 1", got.Rows[1], federated.Vector{0, 0})
}

func TestAggregate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     Request
		wantErr error
	}{
		{
			name:    "weights length mismatch",
			req:     Request{Deltas: []federated.Delta{{0: {1, 1}}}, Weights: []float64{0.5, 0.5}},
			wantErr: federated.ErrConfiguration,
		},
		{
			name:    "negative weight",
			req:     Request{Deltas: []federated.Delta{{0: {1, 1}}}, Weights: []float64{-1}},
			wantErr: federated.ErrConfiguration,
		},
		{
			name:    "negative id",
			req:     Request{Deltas: []federated.Delta{{-2: {1, 1}}}},
			wantErr: federated.ErrInvalidID,
		},
		{
			name:    "wrong dimension",
			req:     Request{Deltas: []federated.Delta{{0: {1, 1, 1}}}},
			wantErr: federated.ErrDimensionMismatch,
		},
		{
			name:    "invalid privacy",
			req:     Request{Deltas: []federated.Delta{{0: {1, 1}}}, Privacy: privacy.Params{Epsilon: privacy.Float(-1), Sensitivity: 1}},
			wantErr: federated.ErrConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Aggregate(baseMatrix(), tt.req, privacy.NewMechanism(1), federated.NewSeeder(0.01, 1))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Aggregate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAggregate_EmptyRound(t *testing.T) {
	t.Parallel()

	m := baseMatrix()
	got, summary, err := Aggregate(m, Request{}, nil, nil)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if got.Len() != m.Len() || summary.ItemsUpdated != 0 {
		t.Errorf("empty round changed the matrix: %+v", summary)
	}
}
