// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package federated

import (
	"context"
	"fmt"
)

// VocabularyProvider supplies the title vocabulary from an external source.
type VocabularyProvider interface {
	Vocabulary(ctx context.Context) (*Vocabulary, error)
}

// RatingProvider supplies a user's private rating history. Histories are
// acquired outside this module (scraping, file import) and handed over as
// immutable records.
type RatingProvider interface {
	Ratings(ctx context.Context, userID string) ([]RatingRecord, error)
}

// StaticVocabulary serves a fixed title list.
type StaticVocabulary []string

// Vocabulary implements VocabularyProvider.
func (s StaticVocabulary) Vocabulary(_ context.Context) (*Vocabulary, error) {
	if len(s) == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", ErrConfiguration)
	}
	return VocabularyFromTitles(s)
}

// StaticRatings serves in-memory rating histories keyed by user id.
type StaticRatings map[string][]RatingRecord

// Ratings implements RatingProvider. Unknown users yield ErrNotFound.
func (s StaticRatings) Ratings(_ context.Context, userID string) ([]RatingRecord, error) {
	records, ok := s[userID]
	if !ok {
		return nil, fmt.Errorf("ratings for user %q: %w", userID, ErrNotFound)
	}
	out := make([]RatingRecord, len(records))
	copy(out, records)
	return out, nil
}

var (
	_ VocabularyProvider = StaticVocabulary(nil)
	_ RatingProvider     = StaticRatings(nil)
)
