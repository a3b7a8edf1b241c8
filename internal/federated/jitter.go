// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package federated

import (
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultJitterScale is the standard deviation of the zero-mean normal noise
// used to seed new item and user vectors.
const DefaultJitterScale = 0.01

// Seeder draws small random vectors for initialization and model growth.
// It is safe for concurrent use.
type Seeder struct {
	mu    sync.Mutex
	dist  distuv.Normal
	scale float64
}

// NewSeeder returns a Seeder drawing from N(0, scale^2). A non-positive scale
// uses DefaultJitterScale. A zero seed draws a random one.
func NewSeeder(scale float64, seed uint64) *Seeder {
	if scale <= 0 {
		scale = DefaultJitterScale
	}
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Seeder{
		dist: distuv.Normal{
			Mu:    0,
			Sigma: scale,
			Src:   rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		},
		scale: scale,
	}
}

// DeriveSeed maps a configured seed and a stream name to an independent
// seed, so every role and participant sharing one configured seed still draws
// its own random sequence. A zero seed stays zero (random).
func DeriveSeed(seed uint64, stream string) uint64 {
	if seed == 0 {
		return 0
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], seed)
	h := xxhash.New()
	_, _ = h.Write(buf[:])
	_, _ = h.WriteString(stream)
	if out := h.Sum64(); out != 0 {
		return out
	}
	return seed
}

// Scale returns the jitter standard deviation.
func (s *Seeder) Scale() float64 {
	return s.scale
}

// Vector returns a new jitter vector of length dim.
func (s *Seeder) Vector(dim int) Vector {
	v := make(Vector, dim)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range v {
		v[i] = s.dist.Rand()
	}
	return v
}
