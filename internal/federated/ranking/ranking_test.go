// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package ranking

import (
	"errors"
	"math"
	"testing"

	"github.com/tomtom215/fedmf/internal/federated"
)

func testQuery(t *testing.T) *Query {
	t.Helper()
	vocab, err := federated.VocabularyFromTitles([]string{"Dark", "Ozark", "Narcos", "Lupin", "Elite"})
	if err != nil {
		t.Fatal(err)
	}
	return &Query{
		Vocabulary: vocab,
		Items: federated.ItemFactorMatrix{Dim: 2, Rows: []federated.Vector{
			{1, 0},   // Dark
			{0, 1},   // Ozark
			{0.5, 0}, // Narcos
			{2, 2},   // Lupin
			{-1, 0},  // Elite
		}},
		User:    federated.Vector{1, 0},
		Options: DefaultOptions(),
	}
}

func titles(s []Scored) []string {
	out := make([]string, len(s))
	for i, x := range s {
		out[i] = x.Title
	}
	return out
}

func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	o := DefaultOptions()
	if o.RecentBucket != 12 || o.AlphaLong != 0.7 || o.BetaRecent != 0.3 || !o.ExcludeWatched || o.TopN != 6 {
		t.Errorf("DefaultOptions() = %+v", o)
	}
}

func TestRecommend_OrdersByScore(t *testing.T) {
	t.Parallel()

	q := testQuery(t)
	got, err := Recommend(q)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}

	want := []string{"Lupin", "Dark", "Narcos", "Ozark", "Elite"}
	gotTitles := titles(got)
	for i := range want {
		if gotTitles[i] != want[i] {
			t.Fatalf("order = %v, want %v", gotTitles, want)
		}
	}
	if got[0].Score != 2 || got[0].ItemID != 3 {
		t.Errorf("top = %+v, want Lupin score 2", got[0])
	}
}

func TestRecommend_ExcludesWatchedNormalized(t *testing.T) {
	t.Parallel()

	q := testQuery(t)
	q.Ratings = []federated.RatingRecord{
		{Title: "lupin\u200b", Bucket: 1, Rating: 1},
		{Title: "  DARK ", Bucket: 1, Rating: 1},
	}

	got, err := Recommend(q)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	for _, s := range got {
		if s.Title == "Lupin" || s.Title == "Dark" {
			t.Errorf("watched title %q recommended", s.Title)
		}
	}
	if len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}

	q.Options.ExcludeWatched = false
	all, _ := Recommend(q)
	if len(all) != 5 {
		t.Errorf("ExcludeWatched=false len = %d, want 5", len(all))
	}
}

func TestRecommend_TopN(t *testing.T) {
	t.Parallel()

	q := testQuery(t)
	q.Options.TopN = 2
	got, _ := Recommend(q)
	if len(got) != 2 {
		t.Errorf("TopN=2 len = %d", len(got))
	}

	q.Options.TopN = 0
	got, _ = Recommend(q)
	if len(got) != 5 {
		t.Errorf("TopN=0 len = %d, want all 5", len(got))
	}
}

func TestRecommend_TiesKeepIDOrder(t *testing.T) {
	t.Parallel()

	q := testQuery(t)
	q.User = federated.Vector{0, 0}
	got, _ := Recommend(q)
	for i := 1; i < len(got); i++ {
		if got[i].ItemID < got[i-1].ItemID {
			t.Fatalf("ties not in id order: %v", titles(got))
		}
	}
}

func TestRecommend_Deterministic(t *testing.T) {
	t.Parallel()

	q := testQuery(t)
	q.Ratings = []federated.RatingRecord{{Title: "Ozark", Bucket: 12, Rating: 3}}
	q.Options.ExcludeWatched = false

	a, _ := Recommend(q)
	b, _ := Recommend(q)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Recommend() not deterministic at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestBlend(t *testing.T) {
	t.Parallel()

	q := testQuery(t)

	// No recent items: blend is U
	b, recent, err := Blend(q)
	if err != nil || recent || b[0] != 1 || b[1] != 0 {
		t.Fatalf("Blend() without recent = %v, %v, %v", b, recent, err)
	}

	// Recent items average Ozark and Lupin: mean = (1, 1.5)
	q.Ratings = []federated.RatingRecord{
		{Title: "Ozark", Bucket: 12},
		{Title: "Lupin", Bucket: 12},
		{Title: "Elite", Bucket: 3},
		{Title: "Missing", Bucket: 12},
	}
	b, recent, err = Blend(q)
	if err != nil || !recent {
		t.Fatalf("Blend() = %v, %v, %v", b, recent, err)
	}
	want := federated.Vector{0.7*1 + 0.3*1, 0.7*0 + 0.3*1.5}
	for f := range want {
		if math.Abs(b[f]-want[f]) > 1e-12 {
			t.Errorf("Blend() = %v, want %v", b, want)
		}
	}
}

func TestRecommend_RecentShiftsRanking(t *testing.T) {
	t.Parallel()

	q := testQuery(t)
	q.Options.ExcludeWatched = false
	q.Options.AlphaLong = 0
	q.Options.BetaRecent = 1
	q.Ratings = []federated.RatingRecord{{Title: "Ozark", Bucket: 12}}

	got, _ := Recommend(q)
	// blend = Ozark vector (0,1): Lupin 2, Ozark 1, others 0
	if got[0].Title != "Lupin" || got[1].Title != "Ozark" {
		t.Errorf("order = %v", titles(got))
	}
}

func TestRecommend_DimensionMismatch(t *testing.T) {
	t.Parallel()

	q := testQuery(t)
	q.User = federated.Vector{1, 2, 3}
	if _, err := Recommend(q); !errors.Is(err, federated.ErrDimensionMismatch) {
		t.Errorf("Recommend() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestRecommend_SkipsTitlesWithoutRows(t *testing.T) {
	t.Parallel()

	q := testQuery(t)
	_, _, _ = q.Vocabulary.Register("Brand New")
	got, err := Recommend(q)
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	for _, s := range got {
		if s.Title == "Brand New" {
			t.Error("title without a matrix row was scored")
		}
	}
}
