// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package storage

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/fedmf/internal/federated"
)

func newTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(Options{InMemory: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSnapshot(t *testing.T, version uint64) *ModelSnapshot {
	t.Helper()
	vocab, err := federated.VocabularyFromTitles([]string{"Dark", "Ozark"})
	if err != nil {
		t.Fatal(err)
	}
	return &ModelSnapshot{
		Scope:      DefaultScope,
		Version:    version,
		Items:      federated.ItemFactorMatrix{Dim: 2, Rows: []federated.Vector{{0.1, 0.2}, {0.3, 1.0 / 3.0}}},
		Vocabulary: vocab,
	}
}

func TestBadgerStore_ModelRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	if err := s.PersistModel(ctx, testSnapshot(t, 3)); err != nil {
		t.Fatalf("PersistModel() error = %v", err)
	}

	got, err := s.LoadModel(ctx, DefaultScope)
	if err != nil {
		t.Fatalf("LoadModel() error = %v", err)
	}
	if got.Version != 3 {
		t.Errorf("Version = %d, want 3", got.Version)
	}
	if got.Items.Dim != 2 || got.Items.Len() != 2 {
		t.Fatalf("Items = %+v", got.Items)
	}
	if got.Items.Rows[1][1] != 1.0/3.0 {
		t.Errorf("float value not preserved exactly: %v", got.Items.Rows[1][1])
	}
	if id, ok := got.Vocabulary.Lookup("ozark"); !ok || id != 1 {
		t.Errorf("Vocabulary.Lookup(ozark) = %d, %v", id, ok)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}

	items, err := s.LoadItemFactors(ctx, DefaultScope)
	if err != nil || items.Len() != 2 {
		t.Errorf("LoadItemFactors() = %v, %v", items, err)
	}
	vocab, err := s.LoadVocabulary(ctx, DefaultScope)
	if err != nil || vocab.Len() != 2 {
		t.Errorf("LoadVocabulary() = %v, %v", vocab, err)
	}
}

func TestBadgerStore_PersistOverwrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	_ = s.PersistModel(ctx, testSnapshot(t, 1))
	snap := testSnapshot(t, 2)
	snap.Items.Rows[0] = federated.Vector{9, 9}
	if err := s.PersistModel(ctx, snap); err != nil {
		t.Fatalf("PersistModel() error = %v", err)
	}

	got, _ := s.LoadModel(ctx, DefaultScope)
	if got.Version != 2 || got.Items.Rows[0][0] != 9 {
		t.Errorf("LoadModel() = version %d row %v; want overwritten state", got.Version, got.Items.Rows[0])
	}
}

func TestBadgerStore_PersistRejectsInvalidModel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	_ = s.PersistModel(ctx, testSnapshot(t, 1))

	bad := testSnapshot(t, 2)
	bad.Items.Rows = bad.Items.Rows[:1] // fewer rows than titles
	if err := s.PersistModel(ctx, bad); !errors.Is(err, federated.ErrConfiguration) {
		t.Fatalf("PersistModel() error = %v, want ErrConfiguration", err)
	}

	got, err := s.LoadModel(ctx, DefaultScope)
	if err != nil || got.Version != 1 || got.Items.Len() != 2 {
		t.Errorf("previous state not intact after rejected persist: %+v, %v", got, err)
	}
}

func TestBadgerStore_NotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.LoadModel(ctx, "missing"); !errors.Is(err, federated.ErrNotFound) {
		t.Errorf("LoadModel() error = %v, want ErrNotFound", err)
	}
	if _, err := s.LoadUserFactors(ctx, "nobody"); !errors.Is(err, federated.ErrNotFound) {
		t.Errorf("LoadUserFactors() error = %v, want ErrNotFound", err)
	}
	if _, err := s.LoadItemFactors(ctx, "missing"); !errors.Is(err, federated.ErrNotFound) {
		t.Errorf("LoadItemFactors() error = %v, want ErrNotFound", err)
	}
}

func TestBadgerStore_UserFactors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	if err := s.PersistUserFactors(ctx, "alice", federated.Vector{0.5, -0.25}); err != nil {
		t.Fatalf("PersistUserFactors() error = %v", err)
	}
	v, err := s.LoadUserFactors(ctx, "alice")
	if err != nil {
		t.Fatalf("LoadUserFactors() error = %v", err)
	}
	if len(v) != 2 || v[0] != 0.5 || v[1] != -0.25 {
		t.Errorf("LoadUserFactors() = %v", v)
	}
}

func TestBadgerStore_RoundDeltas(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	for _, pid := range []string{"carol", "alice", "bob"} {
		err := s.SaveRoundDelta(ctx, "r1", RoundDelta{
			ParticipantID: pid,
			Delta:         federated.Delta{0: {0.1, 0.2}, 4: {0, -1}},
			SubmittedAt:   time.Now(),
		})
		if err != nil {
			t.Fatalf("SaveRoundDelta(%s) error = %v", pid, err)
		}
	}
	_ = s.SaveRoundDelta(ctx, "r2", RoundDelta{ParticipantID: "dave", Delta: federated.Delta{}})

	got, err := s.LoadRoundDeltas(ctx, "r1")
	if err != nil {
		t.Fatalf("LoadRoundDeltas() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ParticipantID != "alice" || got[1].ParticipantID != "bob" || got[2].ParticipantID != "carol" {
		t.Errorf("deltas not sorted by participant: %v, %v, %v",
			got[0].ParticipantID, got[1].ParticipantID, got[2].ParticipantID)
	}
	if got[0].Delta[4][1] != -1 {
		t.Errorf("delta content not preserved: %v", got[0].Delta)
	}

	if err := s.DeleteRound(ctx, "r1"); err != nil {
		t.Fatalf("DeleteRound() error = %v", err)
	}
	got, _ = s.LoadRoundDeltas(ctx, "r1")
	if len(got) != 0 {
		t.Errorf("round r1 still has %d deltas after delete", len(got))
	}
	other, _ := s.LoadRoundDeltas(ctx, "r2")
	if len(other) != 1 {
		t.Errorf("DeleteRound removed another round's deltas")
	}
}

func TestInitializeItemFactors(t *testing.T) {
	t.Parallel()

	vocab, _ := federated.VocabularyFromTitles([]string{"Popular", "Niche", "Unknown"})
	priors := map[string]float64{"popular": 4, "NICHE": 1}

	m, err := InitializeItemFactors(vocab, priors, 16, nil, federated.NewSeeder(0.01, 1))
	if err != nil {
		t.Fatalf("InitializeItemFactors() error = %v", err)
	}
	if m.Len() != 3 || m.Dim != 16 {
		t.Fatalf("matrix shape = %d x %d, want 3 x 16", m.Len(), m.Dim)
	}

	popular := federated.Norm(m.Rows[0])
	niche := federated.Norm(m.Rows[1])
	unknown := federated.Norm(m.Rows[2])

	if math.Abs(popular-4) > 0.1 || math.Abs(niche-1) > 0.1 {
		t.Errorf("prior norms = %v, %v; want ~4, ~1", popular, niche)
	}
	if unknown > 0.2 {
		t.Errorf("no-prior row norm = %v, want jitter only", unknown)
	}
}

func TestInitializeItemFactors_CustomSeeder(t *testing.T) {
	t.Parallel()

	vocab, _ := federated.VocabularyFromTitles([]string{"A"})
	first := func(prior float64, dim int) federated.Vector {
		v := make(federated.Vector, dim)
		v[0] = prior
		return v
	}

	m, err := InitializeItemFactors(vocab, map[string]float64{"A": 2}, 3, first, federated.NewSeeder(1e-9, 1))
	if err != nil {
		t.Fatalf("InitializeItemFactors() error = %v", err)
	}
	if math.Abs(m.Rows[0][0]-2) > 1e-6 || math.Abs(m.Rows[0][1]) > 1e-6 {
		t.Errorf("custom seeder not applied: %v", m.Rows[0])
	}
}

func TestInitializeItemFactors_Errors(t *testing.T) {
	t.Parallel()

	seeder := federated.NewSeeder(0.01, 1)
	vocab, _ := federated.VocabularyFromTitles([]string{"A"})

	if _, err := InitializeItemFactors(federated.NewVocabulary(), nil, 4, nil, seeder); !errors.Is(err, federated.ErrConfiguration) {
		t.Errorf("empty vocabulary error = %v", err)
	}
	if _, err := InitializeItemFactors(vocab, nil, 0, nil, seeder); !errors.Is(err, federated.ErrConfiguration) {
		t.Errorf("zero dim error = %v", err)
	}
	if _, err := InitializeUser(-1, seeder); !errors.Is(err, federated.ErrConfiguration) {
		t.Errorf("InitializeUser negative dim error = %v", err)
	}
}

func TestLoadOrInitUser(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	seeder := federated.NewSeeder(0.01, 3)

	v, created, err := LoadOrInitUser(ctx, s, "alice", 4, seeder)
	if err != nil || !created || len(v) != 4 {
		t.Fatalf("first LoadOrInitUser() = %v, %v, %v", v, created, err)
	}

	again, created, err := LoadOrInitUser(ctx, s, "alice", 4, seeder)
	if err != nil || created {
		t.Fatalf("second LoadOrInitUser() created = %v, err = %v", created, err)
	}
	for i := range v {
		if again[i] != v[i] {
			t.Fatalf("reloaded vector differs: %v vs %v", again, v)
		}
	}

	if _, _, err := LoadOrInitUser(ctx, s, "alice", 8, seeder); !errors.Is(err, federated.ErrConfiguration) {
		t.Errorf("dimension mismatch error = %v, want ErrConfiguration", err)
	}
}
