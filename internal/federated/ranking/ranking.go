// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

// Package ranking scores vocabulary titles for one user by blending the
// user's long-term vector with the mean of recently watched item vectors:
//
//	b = alpha*U + beta*mean(V[recent])   (b = U when nothing recent resolves)
//	score(i) = b.V[i]
//
// Ranking is pure: equal inputs yield identical ordered output.
package ranking

import (
	"fmt"
	"sort"

	"github.com/tomtom215/fedmf/internal/federated"
)

// Options configures the hybrid ranking.
type Options struct {
	// RecentBucket selects which rating records count as recent.
	// Default: 12.
	RecentBucket int

	// AlphaLong weights the long-term user vector.
	// Default: 0.7.
	AlphaLong float64

	// BetaRecent weights the recent-interest vector.
	// Default: 0.3.
	BetaRecent float64

	// ExcludeWatched drops titles present in the rating history.
	// Default: true.
	ExcludeWatched bool

	// TopN caps the result length. Zero or negative returns every candidate.
	// Default: 6.
	TopN int
}

// DefaultOptions returns the standard ranking options.
func DefaultOptions() Options {
	return Options{
		RecentBucket:   12,
		AlphaLong:      0.7,
		BetaRecent:     0.3,
		ExcludeWatched: true,
		TopN:           6,
	}
}

// Query is everything needed to rank for one user.
type Query struct {
	Vocabulary *federated.Vocabulary
	Items      federated.ItemFactorMatrix
	User       federated.Vector
	Ratings    []federated.RatingRecord
	Options    Options
}

// Scored is one ranked title.
type Scored struct {
	Title  string  `json:"title"`
	ItemID int     `json:"item_id"`
	Score  float64 `json:"score"`
}

// Blend returns the query vector used for scoring and whether any recent
// item contributed to it.
func Blend(q *Query) (federated.Vector, bool, error) {
	if len(q.User) != q.Items.Dim {
		return nil, false, &federated.DimensionError{Op: "rank user vector", Want: q.Items.Dim, Got: len(q.User)}
	}

	var recent []federated.Vector
	for i := range q.Ratings {
		rec := &q.Ratings[i]
		if rec.Bucket != q.Options.RecentBucket {
			continue
		}
		id, ok := q.Vocabulary.Lookup(rec.Title)
		if !ok {
			continue
		}
		if row, ok := q.Items.Row(id); ok {
			recent = append(recent, row)
		}
	}
	if len(recent) == 0 {
		return q.User.Clone(), false, nil
	}

	mean, err := federated.Mean(q.Items.Dim, recent...)
	if err != nil {
		return nil, false, err
	}
	blend := make(federated.Vector, q.Items.Dim)
	for f := range blend {
		blend[f] = q.Options.AlphaLong*q.User[f] + q.Options.BetaRecent*mean[f]
	}
	return blend, true, nil
}

// Recommend returns candidate titles ordered by descending score. Candidates
// are vocabulary titles in id order that have a matrix row, minus watched
// titles when ExcludeWatched is set. Equal scores keep id order.
func Recommend(q *Query) ([]Scored, error) {
	if q.Vocabulary == nil {
		return nil, fmt.Errorf("%w: nil vocabulary", federated.ErrConfiguration)
	}
	blend, _, err := Blend(q)
	if err != nil {
		return nil, err
	}

	watched := make(map[string]struct{})
	if q.Options.ExcludeWatched {
		for i := range q.Ratings {
			watched[federated.NormalizeTitle(q.Ratings[i].Title)] = struct{}{}
		}
	}

	titles := q.Vocabulary.Titles()
	out := make([]Scored, 0, len(titles))
	for id, title := range titles {
		row, ok := q.Items.Row(id)
		if !ok {
			continue
		}
		if _, seen := watched[federated.NormalizeTitle(title)]; seen {
			continue
		}
		score, err := federated.Dot(blend, row)
		if err != nil {
			return nil, err
		}
		out = append(out, Scored{Title: title, ItemID: id, Score: score})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })

	if n := q.Options.TopN; n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}
