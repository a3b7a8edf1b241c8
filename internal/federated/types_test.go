// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package federated

import (
	"errors"
	"math"
	"testing"
)

func TestNewItemFactorMatrix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		dim     int
		rows    []Vector
		wantErr error
	}{
		{name: "valid", dim: 2, rows: []Vector{{1, 2}, {3, 4}}},
		{name: "empty rows", dim: 3, rows: nil},
		{name: "zero dim", dim: 0, rows: nil, wantErr: ErrConfiguration},
		{name: "ragged row", dim: 2, rows: []Vector{{1, 2}, {3}}, wantErr: ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewItemFactorMatrix(tt.dim, tt.rows)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestItemFactorMatrix_Grow(t *testing.T) {
	t.Parallel()

	m, _ := NewItemFactorMatrix(3, []Vector{{1, 1, 1}})
	seeder := NewSeeder(0.01, 7)

	grown := m.Grow(4, seeder)
	if grown.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", grown.Len())
	}
	if m.Len() != 1 {
		t.Errorf("original matrix modified: Len() = %d", m.Len())
	}
	if grown.Rows[0][0] != 1 {
		t.Errorf("existing row changed: %v", grown.Rows[0])
	}
	for i := 1; i < 4; i++ {
		if len(grown.Rows[i]) != 3 {
			t.Errorf("row %d dim = %d, want 3", i, len(grown.Rows[i]))
		}
		if Norm(grown.Rows[i]) > 0.2 {
			t.Errorf("row %d norm = %v, jitter should be small", i, Norm(grown.Rows[i]))
		}
	}

	same := grown.Grow(2, seeder)
	if same.Len() != 4 {
		t.Errorf("Grow to smaller size changed Len() to %d", same.Len())
	}
}

func TestItemFactorMatrix_CloneIsDeep(t *testing.T) {
	t.Parallel()

	m, _ := NewItemFactorMatrix(2, []Vector{{1, 2}})
	c := m.Clone()
	c.Rows[0][0] = 99

	if m.Rows[0][0] != 1 {
		t.Errorf("Clone shares rows with original")
	}
}

func TestDelta_Validate(t *testing.T) {
	t.Parallel()

	if err := (Delta{0: {1, 2}, 3: {0, 0}}).Validate(2); err != nil {
		t.Errorf("valid delta: %v", err)
	}
	if err := (Delta{-1: {1, 2}}).Validate(2); !errors.Is(err, ErrInvalidID) {
		t.Errorf("negative id error = %v, want ErrInvalidID", err)
	}
	var dimErr *DimensionError
	if err := (Delta{1: {1}}).Validate(2); !errors.As(err, &dimErr) || dimErr.Want != 2 || dimErr.Got != 1 {
		t.Errorf("short vector error = %v, want DimensionError{Want:2, Got:1}", err)
	}
}

func TestDelta_IDsAndMax(t *testing.T) {
	t.Parallel()

	d := Delta{5: {0}, 1: {0}, 3: {0}}
	ids := d.IDs()
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 3 || ids[2] != 5 {
		t.Errorf("IDs() = %v, want [1 3 5]", ids)
	}
	if d.MaxID() != 5 {
		t.Errorf("MaxID() = %d, want 5", d.MaxID())
	}
	if (Delta{}).MaxID() != -1 {
		t.Errorf("empty MaxID() should be -1")
	}
}

func TestVectorOps(t *testing.T) {
	t.Parallel()

	a := Vector{1, 2, 3}
	b := Vector{4, 5, 6}

	dot, err := Dot(a, b)
	if err != nil || dot != 32 {
		t.Errorf("Dot() = %v, %v; want 32", dot, err)
	}

	sum, _ := Add(a, b)
	diff, _ := Sub(b, a)
	for i := range a {
		if sum[i] != a[i]+b[i] {
			t.Errorf("Add()[%d] = %v", i, sum[i])
		}
		if diff[i] != 3 {
			t.Errorf("Sub()[%d] = %v, want 3", i, diff[i])
		}
	}

	if _, err := Dot(a, Vector{1}); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Dot mismatch error = %v", err)
	}

	if n := Norm(Vector{3, 4}); n != 5 {
		t.Errorf("Norm() = %v, want 5", n)
	}

	mean, err := Mean(2, Vector{1, 3}, Vector{3, 5})
	if err != nil || mean[0] != 2 || mean[1] != 4 {
		t.Errorf("Mean() = %v, %v; want [2 4]", mean, err)
	}
	if empty, _ := Mean(2); empty != nil {
		t.Errorf("Mean() of nothing = %v, want nil", empty)
	}

	scaled := Scale(0.5, Vector{2, 4})
	if scaled[0] != 1 || scaled[1] != 2 {
		t.Errorf("Scale() = %v", scaled)
	}
}

func TestSeeder_Distribution(t *testing.T) {
	t.Parallel()

	s := NewSeeder(0.01, 42)
	const n = 20000
	v := s.Vector(n)

	var sum, sumSq float64
	for _, x := range v {
		sum += x
		sumSq += x * x
	}
	mean := sum / n
	std := math.Sqrt(sumSq/n - mean*mean)

	if math.Abs(mean) > 0.001 {
		t.Errorf("mean = %v, want ~0", mean)
	}
	if math.Abs(std-0.01) > 0.001 {
		t.Errorf("std = %v, want ~0.01", std)
	}
}

func TestSeeder_Deterministic(t *testing.T) {
	t.Parallel()

	a := NewSeeder(0.01, 99).Vector(5)
	b := NewSeeder(0.01, 99).Vector(5)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed produced different vectors: %v vs %v", a, b)
		}
	}

	if NewSeeder(-1, 1).Scale() != DefaultJitterScale {
		t.Error("non-positive scale should fall back to DefaultJitterScale")
	}
}

func TestDeriveSeed(t *testing.T) {
	t.Parallel()

	if got := DeriveSeed(0, "server/noise"); got != 0 {
		t.Errorf("DeriveSeed(0) = %d, want 0", got)
	}
	if DeriveSeed(7, "a") != DeriveSeed(7, "a") {
		t.Error("DeriveSeed() is not deterministic")
	}

	seen := map[uint64]string{}
	for _, stream := range []string{"server/jitter", "server/noise", "participant/alice/noise", "participant/bob/noise"} {
		got := DeriveSeed(7, stream)
		if got == 7 || got == 0 {
			t.Errorf("DeriveSeed(7, %q) = %d, want a derived seed", stream, got)
		}
		if prev, ok := seen[got]; ok {
			t.Errorf("DeriveSeed(7, %q) collides with %q", stream, prev)
		}
		seen[got] = stream
	}
	if DeriveSeed(7, "server/noise") == DeriveSeed(8, "server/noise") {
		t.Error("different seeds derived the same stream")
	}
}
