// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package round

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/fedmf/internal/federated"
	"github.com/tomtom215/fedmf/internal/federated/aggregation"
	"github.com/tomtom215/fedmf/internal/federated/growth"
	"github.com/tomtom215/fedmf/internal/federated/privacy"
	"github.com/tomtom215/fedmf/internal/federated/storage"
	"github.com/tomtom215/fedmf/internal/metrics"
)

// DefaultTopic is the bus topic carrying submitted deltas.
const DefaultTopic = "fedmf.deltas"

// DefaultMaxGrowth bounds how far past the current model a delta id may reach.
const DefaultMaxGrowth = 1024

// metaRoundID is the message metadata key holding the round id.
const metaRoundID = "round_id"

// Config configures a Coordinator.
type Config struct {
	// Scope is the model scope rounds aggregate into.
	// Default: storage.DefaultScope.
	Scope string

	// Topic is the bus topic for submitted deltas.
	// Default: DefaultTopic.
	Topic string

	// LearningRate is the server-side aggregation learning rate.
	// Default: 1.0.
	LearningRate float64

	// Privacy configures server-side clipping and noise of each round's
	// merged update. The zero value disables both.
	Privacy privacy.Params

	// Dim is the latent dimension used when initializing a model.
	// Default: 10.
	Dim int

	// PriorSeeder maps title priors to initial vectors.
	// Default: storage.ScaledPrior.
	PriorSeeder storage.PriorSeeder

	// MaxGrowth is how many ids past max(vocabulary, matrix rows) a submitted
	// delta may reference. Larger ids are rejected with ErrInvalidID.
	// Default: DefaultMaxGrowth.
	MaxGrowth int
}

func (c *Config) applyDefaults() {
	if c.Scope == "" {
		c.Scope = storage.DefaultScope
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.LearningRate == 0 {
		c.LearningRate = aggregation.DefaultLearningRate
	}
	if c.Dim == 0 {
		c.Dim = 10
	}
	if c.PriorSeeder == nil {
		c.PriorSeeder = storage.ScaledPrior
	}
	if c.MaxGrowth <= 0 {
		c.MaxGrowth = DefaultMaxGrowth
	}
}

// Round describes an open round.
type Round struct {
	ID          string    `json:"round_id"`
	Scope       string    `json:"scope"`
	BaseVersion uint64    `json:"base_version"`
	OpenedAt    time.Time `json:"opened_at"`
	Submissions int       `json:"submissions"`
}

// Result is the outcome of closing a round.
type Result struct {
	Round   Round               `json:"round"`
	Version uint64              `json:"version"`
	Summary aggregation.Summary `json:"summary"`
}

type roundState struct {
	// mu is held shared by submitters and exclusively by CloseRound, so no
	// submission can land between loading and deleting a round's deltas.
	mu     sync.RWMutex
	info   Round
	dim    int
	closed bool

	// submitted holds the ids of participants with a persisted delta; a
	// resubmission replaces the earlier delta and is counted once.
	subMu     sync.Mutex
	submitted map[string]struct{}
}

func (st *roundState) markSubmitted(participantID string) {
	st.subMu.Lock()
	defer st.subMu.Unlock()
	if st.submitted == nil {
		st.submitted = make(map[string]struct{})
	}
	st.submitted[participantID] = struct{}{}
}

func (st *roundState) snapshot() Round {
	st.subMu.Lock()
	defer st.subMu.Unlock()
	r := st.info
	r.Submissions = len(st.submitted)
	return r
}

// Coordinator owns the global model on the server side: it opens and closes
// rounds, routes submissions through the delta bus and performs model
// initialization and growth through the Aggregator.
type Coordinator struct {
	cfg    Config
	store  storage.Store
	agg    *aggregation.Aggregator
	growth *growth.Handler
	bus    *gochannel.GoChannel
	logger zerolog.Logger

	collector *Collector

	mu     sync.Mutex
	rounds map[string]*roundState

	// pending maps message UUIDs to the submitter waiting for the collector.
	pending sync.Map
}

// NewCoordinator wires a coordinator and its collector. The collector must
// be running (see Collector) before Submit can complete.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCoordinator(
	cfg Config,
	store storage.Store,
	agg *aggregation.Aggregator,
	growthHandler *growth.Handler,
	busLogger watermill.LoggerAdapter,
	logger zerolog.Logger,
) *Coordinator {
	cfg.applyDefaults()
	if busLogger == nil {
		busLogger = watermill.NopLogger{}
	}
	c := &Coordinator{
		cfg:    cfg,
		store:  store,
		agg:    agg,
		growth: growthHandler,
		bus: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            64,
			BlockPublishUntilSubscriberAck: true,
		}, busLogger),
		logger: logger.With().Str("scope", cfg.Scope).Logger(),
		rounds: make(map[string]*roundState),
	}
	c.collector = newCollector(c)
	return c
}

// Collector returns the bus consumer that persists submissions.
func (c *Coordinator) Collector() *Collector {
	return c.collector
}

// Scope returns the model scope this coordinator writes.
func (c *Coordinator) Scope() string {
	return c.cfg.Scope
}

// Shutdown closes the delta bus. Pending and future submissions fail.
func (c *Coordinator) Shutdown() error {
	return c.bus.Close()
}

// Initialize builds and persists a fresh model from titles and optional
// per-title priors. An existing model is kept unless force is set.
func (c *Coordinator) Initialize(ctx context.Context, titles []string, priors map[string]float64, force bool) (*storage.ModelSnapshot, error) {
	vocab, err := federated.VocabularyFromTitles(titles)
	if err != nil {
		return nil, err
	}
	return c.initialize(ctx, vocab, priors, force)
}

// InitializeFrom is Initialize with the vocabulary taken from a provider.
func (c *Coordinator) InitializeFrom(ctx context.Context, vp federated.VocabularyProvider, priors map[string]float64, force bool) (*storage.ModelSnapshot, error) {
	vocab, err := vp.Vocabulary(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	return c.initialize(ctx, vocab, priors, force)
}

func (c *Coordinator) initialize(ctx context.Context, vocab *federated.Vocabulary, priors map[string]float64, force bool) (*storage.ModelSnapshot, error) {
	items, err := storage.InitializeItemFactors(vocab, priors, c.cfg.Dim, c.cfg.PriorSeeder, c.agg.Seeder())
	if err != nil {
		return nil, err
	}
	snap := &storage.ModelSnapshot{Scope: c.cfg.Scope, Items: items, Vocabulary: vocab}
	if err := c.agg.Create(ctx, snap, force); err != nil {
		return nil, err
	}
	return snap, nil
}

// Snapshot returns the current persisted model.
func (c *Coordinator) Snapshot(ctx context.Context) (*storage.ModelSnapshot, error) {
	return c.store.LoadModel(ctx, c.cfg.Scope)
}

// RegisterItem adds title to the authoritative vocabulary, growing the matrix
// with a jitter row when it is new. Existing titles return their id and leave
// the model version unchanged.
func (c *Coordinator) RegisterItem(ctx context.Context, title string) (id int, added bool, version uint64, err error) {
	snap, err := c.store.LoadModel(ctx, c.cfg.Scope)
	if err != nil {
		return 0, false, 0, err
	}
	if existing, ok := snap.Vocabulary.Lookup(title); ok && existing < snap.Items.Len() {
		return existing, false, snap.Version, nil
	}

	updated, err := c.agg.Update(ctx, c.cfg.Scope, func(s *storage.ModelSnapshot) error {
		var items federated.ItemFactorMatrix
		id, items, added, err = c.growth.RegisterNewItem(s.Vocabulary, s.Items, title)
		if err != nil {
			return err
		}
		if !added && items.Len() == s.Items.Len() {
			// Registered by a concurrent caller since the lookup above.
			return aggregation.ErrNoChange
		}
		s.Items = items
		return nil
	})
	if err != nil {
		return 0, false, 0, err
	}
	return id, added, updated.Version, nil
}

// ApplyInteraction applies a single out-of-round interaction delta with
// weight 1 and learning rate 1.
func (c *Coordinator) ApplyInteraction(ctx context.Context, delta federated.Delta) (*storage.ModelSnapshot, aggregation.Summary, error) {
	if err := c.checkGrowth(ctx, delta); err != nil {
		return nil, aggregation.Summary{}, err
	}
	return c.agg.Apply(ctx, c.cfg.Scope, growth.ServerRequest(delta))
}

// checkGrowth rejects deltas that would grow the matrix further than
// MaxGrowth rows past what the model already knows.
func (c *Coordinator) checkGrowth(ctx context.Context, delta federated.Delta) error {
	maxID := delta.MaxID()
	if maxID < 0 {
		return nil
	}
	snap, err := c.store.LoadModel(ctx, c.cfg.Scope)
	if err != nil {
		return err
	}
	known := max(snap.Vocabulary.Len(), snap.Items.Len())
	if maxID >= known+c.cfg.MaxGrowth {
		return fmt.Errorf("%w: %d is more than %d past the model's %d items",
			federated.ErrInvalidID, maxID, c.cfg.MaxGrowth, known)
	}
	return nil
}

// OpenRound starts a new round against the current model version.
func (c *Coordinator) OpenRound(ctx context.Context) (Round, error) {
	snap, err := c.store.LoadModel(ctx, c.cfg.Scope)
	if err != nil {
		return Round{}, fmt.Errorf("open round: %w", err)
	}

	st := &roundState{
		info: Round{
			ID:          uuid.NewString(),
			Scope:       c.cfg.Scope,
			BaseVersion: snap.Version,
			OpenedAt:    time.Now().UTC(),
		},
		dim: snap.Items.Dim,
	}

	c.mu.Lock()
	c.rounds[st.info.ID] = st
	open := len(c.rounds)
	c.mu.Unlock()

	metrics.SetOpenRounds(c.cfg.Scope, open)
	c.logger.Info().Str("round_id", st.info.ID).Uint64("base_version", snap.Version).Msg("Round opened")
	return st.info, nil
}

// Rounds lists open rounds ordered by opening time.
func (c *Coordinator) Rounds() []Round {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Round, 0, len(c.rounds))
	for _, st := range c.rounds {
		out = append(out, st.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.Before(out[j].OpenedAt) })
	return out
}

func (c *Coordinator) round(roundID string) (*roundState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.rounds[roundID]
	return st, ok
}

// Submit hands a participant's delta to the round. A participant submitting
// twice replaces its earlier submission. A non-positive weight means the
// participant has no explicit weight (see CloseRound).
//
// Submit returns once the delta is persisted or has failed to persist.
func (c *Coordinator) Submit(ctx context.Context, roundID, participantID string, weight float64, delta federated.Delta) error {
	if participantID == "" {
		return fmt.Errorf("%w: empty participant id", federated.ErrConfiguration)
	}
	st, ok := c.round(roundID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoundNotOpen, roundID)
	}

	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.closed {
		return fmt.Errorf("%w: %s", ErrRoundNotOpen, roundID)
	}
	if err := delta.Validate(st.dim); err != nil {
		return err
	}
	if err := c.checkGrowth(ctx, delta); err != nil {
		return err
	}
	if weight < 0 {
		weight = 0
	}

	payload, err := json.Marshal(storage.RoundDelta{
		ParticipantID: participantID,
		Weight:        weight,
		Delta:         delta,
		SubmittedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode delta: %w", err)
	}

	select {
	case <-c.collector.Ready():
	case <-ctx.Done():
		return ctx.Err()
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metaRoundID, roundID)
	msg.Metadata.Set("participant_id", participantID)

	result := make(chan error, 1)
	c.pending.Store(msg.UUID, result)
	defer c.pending.Delete(msg.UUID)

	if err := c.bus.Publish(c.cfg.Topic, msg); err != nil {
		return fmt.Errorf("%w: %w", ErrBusClosed, err)
	}

	select {
	case err := <-result:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	st.markSubmitted(participantID)
	return nil
}

// complete reports the collector's outcome to a waiting submitter.
func (c *Coordinator) complete(msgUUID string, err error) bool {
	v, ok := c.pending.Load(msgUUID)
	if !ok {
		return false
	}
	v.(chan error) <- err
	return true
}

// CloseRound aggregates every submission of the round exactly once and
// discards them. Weights are used as submitted when at least one is
// positive; otherwise all participants are weighted equally. A round with no
// submissions closes without changing the model.
func (c *Coordinator) CloseRound(ctx context.Context, roundID string) (*Result, error) {
	st, ok := c.round(roundID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRoundNotOpen, roundID)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil, fmt.Errorf("%w: %s", ErrRoundNotOpen, roundID)
	}

	start := time.Now()
	submissions, err := c.store.LoadRoundDeltas(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("load round %s: %w", roundID, err)
	}

	res := &Result{Round: st.snapshot()}
	res.Round.Submissions = len(submissions)

	if len(submissions) == 0 {
		snap, err := c.store.LoadModel(ctx, c.cfg.Scope)
		if err != nil {
			return nil, err
		}
		res.Version = snap.Version
	} else {
		req := aggregation.Request{
			Deltas:       make([]federated.Delta, len(submissions)),
			LearningRate: c.cfg.LearningRate,
			Privacy:      c.cfg.Privacy,
		}
		weights := make([]float64, len(submissions))
		weighted := false
		for i, s := range submissions {
			req.Deltas[i] = s.Delta
			weights[i] = s.Weight
			if s.Weight > 0 {
				weighted = true
			}
		}
		if weighted {
			req.Weights = weights
		}

		snap, summary, err := c.agg.Apply(ctx, c.cfg.Scope, req)
		if err != nil {
			metrics.RecordRound(c.cfg.Scope, len(submissions), time.Since(start), err)
			return nil, err
		}
		res.Version = snap.Version
		res.Summary = summary
	}

	if err := c.store.DeleteRound(ctx, roundID); err != nil {
		c.logger.Warn().Err(err).Str("round_id", roundID).Msg("Failed to discard round deltas")
	}

	st.closed = true
	c.mu.Lock()
	delete(c.rounds, roundID)
	open := len(c.rounds)
	c.mu.Unlock()

	metrics.SetOpenRounds(c.cfg.Scope, open)
	metrics.RecordRound(c.cfg.Scope, len(submissions), time.Since(start), nil)
	c.logger.Info().
		Str("round_id", roundID).
		Int("participants", len(submissions)).
		Uint64("version", res.Version).
		Dur("duration", time.Since(start)).
		Msg("Round closed")
	return res, nil
}

// CloseExpired closes every round open for at least maxAge. Failures are
// logged and the remaining rounds are still attempted; the first error is
// returned.
func (c *Coordinator) CloseExpired(ctx context.Context, maxAge time.Duration) ([]*Result, error) {
	cutoff := time.Now().Add(-maxAge)
	var (
		results  []*Result
		firstErr error
	)
	for _, r := range c.Rounds() {
		if r.OpenedAt.After(cutoff) {
			continue
		}
		res, err := c.CloseRound(ctx, r.ID)
		if err != nil {
			c.logger.Error().Err(err).Str("round_id", r.ID).Msg("Failed to close expired round")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		results = append(results, res)
	}
	return results, firstErr
}
