// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package round

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/growth"
	"github.com/tomtom215/fedmf/internal/federated/privacy"
	"github.com/tomtom215/fedmf/internal/federated/ranking"
	"github.com/tomtom215/fedmf/internal/federated/storage"
	"github.com/tomtom215/fedmf/internal/federated/training"
	"github.com/tomtom215/fedmf/internal/metrics"
)

// ParticipantConfig holds the participant-side hyperparameters.
type ParticipantConfig struct {
	Training training.Params
	Privacy  privacy.Params
	Ranking  ranking.Options
}

// Participant is one user's device. Its rating history and user vector stay
// in its own store; only privatized item deltas leave it.
type Participant struct {
	id      string
	store   storage.Store
	ratings federated.RatingProvider
	trainer *training.Trainer
	mech    *privacy.Mechanism
	growth  *growth.Handler
	seeder  *federated.Seeder
	cfg     ParticipantConfig
	logger  zerolog.Logger
}

// ParticipantDeps bundles the shared components a participant uses.
type ParticipantDeps struct {
	Store   storage.Store
	Ratings federated.RatingProvider
	Trainer *training.Trainer
	Mech    *privacy.Mechanism
	Growth  *growth.Handler
	Seeder  *federated.Seeder
}

// NewParticipant creates a participant identified by id.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewParticipant(id string, deps ParticipantDeps, cfg ParticipantConfig, logger zerolog.Logger) *Participant {
	return &Participant{
		id:      id,
		store:   deps.Store,
		ratings: deps.Ratings,
		trainer: deps.Trainer,
		mech:    deps.Mech,
		growth:  deps.Growth,
		seeder:  deps.Seeder,
		cfg:     cfg,
		logger:  logger.With().Str("participant_id", id).Logger(),
	}
}

// ID returns the participant id.
func (p *Participant) ID() string {
	return p.id
}

// Train runs local training against snap and returns the privatized delta.
// The updated user vector is persisted locally; snap is not modified.
func (p *Participant) Train(ctx context.Context, snap *storage.ModelSnapshot) (federated.Delta, error) {
	start := time.Now()

	ratings, err := p.ratings.Ratings(ctx, p.id)
	if err != nil {
		return nil, err
	}
	user, created, err := storage.LoadOrInitUser(ctx, p.store, p.id, snap.Items.Dim, p.seeder)
	if err != nil {
		return nil, err
	}
	if created {
		p.logger.Debug().Msg("Initialized user vector")
	}

	res, err := p.trainer.Train(ctx, ratings, snap.Vocabulary, snap.Items, user, p.cfg.Training)
	metrics.RecordTraining(time.Since(start), resultPairs(res), resultSkipped(res), err)
	if err != nil {
		return nil, err
	}

	delta, err := p.mech.Privatize(res.Delta, p.cfg.Privacy)
	if err != nil {
		return nil, fmt.Errorf("privatize delta: %w", err)
	}
	if p.cfg.Privacy.Enabled() {
		clipped := 0
		if p.cfg.Privacy.ClipThreshold != nil {
			clipped = privacy.ClippedCount(res.Delta, *p.cfg.Privacy.ClipThreshold)
		}
		metrics.RecordPrivatization("client", clipped)
	}

	if err := p.store.PersistUserFactors(ctx, p.id, res.User); err != nil {
		return nil, err
	}

	p.logger.Debug().
		Int("pairs", res.Pairs).
		Int("skipped", res.Skipped).
		Int("items", len(delta)).
		Msg("Trained local delta")
	return delta, nil
}

func resultPairs(r *training.Result) int {
	if r == nil {
		return 0
	}
	return r.Pairs
}

func resultSkipped(r *training.Result) int {
	if r == nil {
		return 0
	}
	return r.Skipped
}

// Recommend ranks snap's titles for this participant.
func (p *Participant) Recommend(ctx context.Context, snap *storage.ModelSnapshot) ([]ranking.Scored, error) {
	start := time.Now()

	ratings, err := p.ratings.Ratings(ctx, p.id)
	if err != nil {
		return nil, err
	}
	user, _, err := storage.LoadOrInitUser(ctx, p.store, p.id, snap.Items.Dim, p.seeder)
	if err != nil {
		return nil, err
	}

	out, err := ranking.Recommend(&ranking.Query{
		Vocabulary: snap.Vocabulary,
		Items:      snap.Items,
		User:       user,
		Ratings:    ratings,
		Options:    p.cfg.Ranking,
	})
	metrics.RecordRecommendation(time.Since(start), len(out), err)
	return out, err
}

// Sync brings local, the participant's copy of the model, in line with the
// coordinator's authoritative snapshot. Titles the coordinator registered in
// the meantime are appended to the local vocabulary in authoritative id
// order, and the item matrix and version are taken from authoritative. A
// vocabulary conflict is returned and leaves local unchanged.
func (p *Participant) Sync(local, authoritative *storage.ModelSnapshot) error {
	added, err := local.Vocabulary.Reconcile(authoritative.Vocabulary)
	if err != nil {
		return err
	}
	local.Items = authoritative.Items
	local.Version = authoritative.Version
	if len(added) > 0 {
		p.logger.Debug().Strs("titles", added).Uint64("version", local.Version).Msg("Reconciled local vocabulary")
	}
	return nil
}

// Interact applies a single choice, typically of a title outside the
// recommendations. snap is the participant's local copy of the model and is
// updated in place (vocabulary and matrix). The returned delta is meant for
// Coordinator.ApplyInteraction after the coordinator registered the title.
func (p *Participant) Interact(ctx context.Context, snap *storage.ModelSnapshot, in growth.Interaction) (*growth.Result, error) {
	user, _, err := storage.LoadOrInitUser(ctx, p.store, p.id, snap.Items.Dim, p.seeder)
	if err != nil {
		return nil, err
	}
	res, err := p.growth.Interact(ctx, snap.Vocabulary, snap.Items, user, in, p.cfg.Training)
	if err != nil {
		return nil, err
	}
	if err := p.store.PersistUserFactors(ctx, p.id, res.User); err != nil {
		return nil, err
	}
	snap.Items = res.Items
	return res, nil
}
