// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package storage

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/tomtom215/fedmf/internal/federated"
)

// PriorSeeder maps a scalar prior to an initial vector of length dim,
// before jitter is added.
type PriorSeeder func(prior float64, dim int) federated.Vector

// ScaledPrior sets every coordinate to prior/sqrt(dim), giving a vector whose
// L2 norm equals |prior|. Higher priors produce proportionally larger vectors.
func ScaledPrior(prior float64, dim int) federated.Vector {
	v := make(federated.Vector, dim)
	c := prior / math.Sqrt(float64(dim))
	for i := range v {
		v[i] = c
	}
	return v
}

// InitializeItemFactors seeds one vector per vocabulary title. priors is keyed
// by title and matched after normalization; it may be nil. A nil seed uses
// ScaledPrior.
func InitializeItemFactors(
	vocab *federated.Vocabulary,
	priors map[string]float64,
	dim int,
	seed PriorSeeder,
	jitter *federated.Seeder,
) (federated.ItemFactorMatrix, error) {
	if vocab == nil || vocab.Len() == 0 {
		return federated.ItemFactorMatrix{}, fmt.Errorf("%w: empty vocabulary", federated.ErrConfiguration)
	}
	if dim <= 0 {
		return federated.ItemFactorMatrix{}, fmt.Errorf("%w: latent dimension must be positive, got %d",
			federated.ErrConfiguration, dim)
	}
	if seed == nil {
		seed = ScaledPrior
	}

	normalized := make(map[string]float64, len(priors))
	for title, p := range priors {
		normalized[federated.NormalizeTitle(title)] = p
	}

	titles := vocab.Titles()
	rows := make([]federated.Vector, len(titles))
	for id, title := range titles {
		row := jitter.Vector(dim)
		if p, ok := normalized[federated.NormalizeTitle(title)]; ok {
			base := seed(p, dim)
			if len(base) != dim {
				return federated.ItemFactorMatrix{}, &federated.DimensionError{
					Op: "prior seeder", Want: dim, Got: len(base),
				}
			}
			for f := range row {
				row[f] += base[f]
			}
		}
		rows[id] = row
	}
	return federated.ItemFactorMatrix{Dim: dim, Rows: rows}, nil
}

// InitializeUser returns a fresh jitter-seeded user vector.
func InitializeUser(dim int, jitter *federated.Seeder) (federated.Vector, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: latent dimension must be positive, got %d", federated.ErrConfiguration, dim)
	}
	return jitter.Vector(dim), nil
}

// LoadOrInitUser loads a user's vector, creating and persisting a fresh one on
// first use. created reports whether a new vector was made. A stored vector of
// the wrong dimension is a configuration error.
func LoadOrInitUser(
	ctx context.Context,
	store Store,
	userID string,
	dim int,
	jitter *federated.Seeder,
) (v federated.Vector, created bool, err error) {
	v, err = store.LoadUserFactors(ctx, userID)
	switch {
	case err == nil:
		if len(v) != dim {
			return nil, false, fmt.Errorf("%w: user %q has dimension %d, global model has %d",
				federated.ErrConfiguration, userID, len(v), dim)
		}
		return v, false, nil
	case !errors.Is(err, federated.ErrNotFound):
		return nil, false, err
	}

	v, err = InitializeUser(dim, jitter)
	if err != nil {
		return nil, false, err
	}
	if err := store.PersistUserFactors(ctx, userID, v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}
