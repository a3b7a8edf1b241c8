// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

// Package privacy bounds and perturbs item deltas before they leave a
// participant, and again after server-side aggregation.
//
// Two steps are applied to every vector of a delta, in order:
//
//  1. Clipping: a vector whose L2 norm exceeds the threshold is scaled down to
//     the threshold, preserving direction.
//  2. Noise: independent zero-mean noise is added to every coordinate. Laplace
//     noise uses scale b = sensitivity/epsilon; Gaussian noise uses
//     sigma = sensitivity*sqrt(2 ln(1.25/delta))/epsilon.
//
// Either step is skipped when its parameter is nil. Smaller epsilon means more
// noise. No cumulative privacy budget is tracked across rounds.
package privacy

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/tomtom215/fedmf/internal/federated"
)

// NoiseKind selects the noise distribution.
type NoiseKind string

const (
	// NoiseGaussian adds normal noise calibrated for (epsilon, delta)-DP.
	NoiseGaussian NoiseKind = "gaussian"

	// NoiseLaplace adds Laplace noise calibrated for epsilon-DP.
	NoiseLaplace NoiseKind = "laplace"
)

const (
	// DefaultSensitivity is the per-vector sensitivity used when none is given.
	DefaultSensitivity = 0.36

	// DefaultDelta is the Gaussian mechanism's failure probability.
	DefaultDelta = 1e-5
)

// Params configures one privatization pass.
type Params struct {
	// Epsilon is the privacy parameter. Nil disables noise.
	Epsilon *float64

	// Sensitivity bounds how much one participant can change a vector.
	// Required (> 0) when Epsilon is set.
	Sensitivity float64

	// Kind selects the noise distribution.
	// Default: gaussian.
	Kind NoiseKind

	// Delta is the Gaussian failure probability, in (0, 1).
	// Default: 1e-5. Ignored for Laplace noise.
	Delta float64

	// ClipThreshold bounds each vector's L2 norm. Nil disables clipping.
	ClipThreshold *float64
}

// Float returns a pointer to v, for optional Params fields.
func Float(v float64) *float64 {
	return &v
}

// withDefaults fills zero values.
func (p Params) withDefaults() Params {
	if p.Kind == "" {
		p.Kind = NoiseGaussian
	}
	if p.Delta == 0 {
		p.Delta = DefaultDelta
	}
	return p
}

// Validate reports invalid parameters as federated.ErrConfiguration.
func (p Params) Validate() error {
	p = p.withDefaults()
	if p.ClipThreshold != nil && !(*p.ClipThreshold > 0) {
		return fmt.Errorf("%w: clip threshold must be positive, got %v", federated.ErrConfiguration, *p.ClipThreshold)
	}
	if p.Epsilon == nil {
		return nil
	}
	if !(*p.Epsilon > 0) || math.IsInf(*p.Epsilon, 0) {
		return fmt.Errorf("%w: epsilon must be positive and finite, got %v", federated.ErrConfiguration, *p.Epsilon)
	}
	if !(p.Sensitivity > 0) {
		return fmt.Errorf("%w: sensitivity must be positive, got %v", federated.ErrConfiguration, p.Sensitivity)
	}
	switch p.Kind {
	case NoiseLaplace:
	case NoiseGaussian:
		if !(p.Delta > 0 && p.Delta < 1) {
			return fmt.Errorf("%w: gaussian delta must be in (0, 1), got %v", federated.ErrConfiguration, p.Delta)
		}
	default:
		return fmt.Errorf("%w: unknown noise kind %q", federated.ErrConfiguration, p.Kind)
	}
	return nil
}

// NoiseScale returns the Laplace scale b or the Gaussian standard deviation
// for p. It returns 0 when noise is disabled.
func (p Params) NoiseScale() float64 {
	p = p.withDefaults()
	if p.Epsilon == nil {
		return 0
	}
	if p.Kind == NoiseLaplace {
		return p.Sensitivity / *p.Epsilon
	}
	return p.Sensitivity * math.Sqrt(2*math.Log(1.25/p.Delta)) / *p.Epsilon
}

// Enabled reports whether p clips or perturbs anything.
func (p Params) Enabled() bool {
	return p.Epsilon != nil || p.ClipThreshold != nil
}

// Mechanism applies clipping and noise. It is safe for concurrent use.
type Mechanism struct {
	mu  sync.Mutex
	src rand.Source
}

// NewMechanism returns a Mechanism with its own random source. A zero seed
// draws a random one.
func NewMechanism(seed uint64) *Mechanism {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Mechanism{src: rand.NewPCG(seed, ^seed)}
}

// Privatize returns a clipped and noised copy of delta. The key set and vector
// dimensions are preserved exactly and delta is not modified. Items are
// processed in ascending id order so a seeded mechanism is reproducible.
func (m *Mechanism) Privatize(delta federated.Delta, p Params) (federated.Delta, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p = p.withDefaults()

	out := make(federated.Delta, len(delta))
	if p.Epsilon == nil {
		for id, v := range delta {
			if p.ClipThreshold != nil {
				out[id] = Clip(v, *p.ClipThreshold)
			} else {
				out[id] = v.Clone()
			}
		}
		return out, nil
	}

	scale := p.NoiseScale()

	m.mu.Lock()
	defer m.mu.Unlock()

	var sample func() float64
	if p.Kind == NoiseLaplace {
		dist := distuv.Laplace{Mu: 0, Scale: scale, Src: m.src}
		sample = dist.Rand
	} else {
		dist := distuv.Normal{Mu: 0, Sigma: scale, Src: m.src}
		sample = dist.Rand
	}

	for _, id := range delta.IDs() {
		v := delta[id]
		if p.ClipThreshold != nil {
			v = Clip(v, *p.ClipThreshold)
		} else {
			v = v.Clone()
		}
		for i := range v {
			v[i] += sample()
		}
		out[id] = v
	}
	return out, nil
}

// Clip returns a copy of v scaled so its L2 norm is at most threshold.
// Vectors already within the bound are copied unchanged.
func Clip(v federated.Vector, threshold float64) federated.Vector {
	norm := federated.Norm(v)
	if norm <= threshold || norm == 0 {
		return v.Clone()
	}
	// Rounding can leave the scaled norm an ulp above threshold.
	scale := threshold / norm
	out := federated.Scale(scale, v)
	for federated.Norm(out) > threshold {
		scale = math.Nextafter(scale, 0)
		out = federated.Scale(scale, v)
	}
	return out
}

// ClipDelta applies Clip to every vector of d.
func ClipDelta(d federated.Delta, threshold float64) federated.Delta {
	out := make(federated.Delta, len(d))
	for id, v := range d {
		out[id] = Clip(v, threshold)
	}
	return out
}

// ClippedCount returns how many vectors of d exceed threshold.
func ClippedCount(d federated.Delta, threshold float64) int {
	n := 0
	for _, v := range d {
		if federated.Norm(v) > threshold {
			n++
		}
	}
	return n
}
