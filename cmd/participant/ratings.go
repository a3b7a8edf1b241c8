// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fedmf/internal/federated"
)

// loadRatings reads a JSON object mapping user ids to rating histories:
//
//	{"alice": [{"title": "Heat", "bucket": 40, "watch_count": 1, "rating": 4.5}]}
func loadRatings(path string) (federated.StaticRatings, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is an operator-supplied flag
	if err != nil {
		return nil, fmt.Errorf("read ratings: %w", err)
	}

	var ratings federated.StaticRatings
	if err := json.Unmarshal(data, &ratings); err != nil {
		return nil, fmt.Errorf("%w: decode ratings %s: %v", federated.ErrConfiguration, path, err)
	}
	if len(ratings) == 0 {
		return nil, fmt.Errorf("%w: ratings file %s has no users", federated.ErrConfiguration, path)
	}
	return ratings, nil
}

// users returns the user ids in sorted order.
func users(ratings federated.StaticRatings) []string {
	ids := make([]string, 0, len(ratings))
	for id := range ratings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// titles collects every distinct non-empty title in the histories, in
// first-seen order over sorted users.
func titles(ratings federated.StaticRatings) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, id := range users(ratings) {
		for _, r := range ratings[id] {
			key := federated.NormalizeTitle(r.Title)
			if _, ok := seen[key]; ok || key == "" {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, r.Title)
		}
	}
	return out
}
