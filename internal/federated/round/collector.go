// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package round

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fedmf/internal/federated/storage"
	"github.com/tomtom215/fedmf/internal/metrics"
)

// Collector consumes submitted deltas from the bus and persists them as
// round blobs. It implements suture.Service.
type Collector struct {
	coord     *Coordinator
	ready     chan struct{}
	readyOnce sync.Once
}

func newCollector(c *Coordinator) *Collector {
	return &Collector{coord: c, ready: make(chan struct{})}
}

// Ready is closed once the collector has subscribed for the first time.
func (col *Collector) Ready() <-chan struct{} {
	return col.ready
}

// Serve subscribes to the delta topic and persists messages until ctx is
// canceled.
func (col *Collector) Serve(ctx context.Context) error {
	messages, err := col.coord.bus.Subscribe(ctx, col.coord.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", col.coord.cfg.Topic, err)
	}
	col.readyOnce.Do(func() { close(col.ready) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			col.process(ctx, msg)
		}
	}
}

// process persists one submission. Every message is acked: a failure is
// reported to the submitter instead of being redelivered.
func (col *Collector) process(ctx context.Context, msg *message.Message) {
	err := col.persist(ctx, msg)
	metrics.RecordDeltaReceived(col.coord.cfg.Scope, err)
	if err != nil {
		col.coord.logger.Error().
			Err(err).
			Str("message_uuid", msg.UUID).
			Str("round_id", msg.Metadata.Get(metaRoundID)).
			Msg("Failed to persist submitted delta")
	}
	if !col.coord.complete(msg.UUID, err) && err == nil {
		col.coord.logger.Debug().Str("message_uuid", msg.UUID).Msg("Persisted delta with no waiting submitter")
	}
	msg.Ack()
}

func (col *Collector) persist(ctx context.Context, msg *message.Message) error {
	roundID := msg.Metadata.Get(metaRoundID)
	if roundID == "" {
		return fmt.Errorf("message %s has no round id", msg.UUID)
	}
	var rd storage.RoundDelta
	if err := json.Unmarshal(msg.Payload, &rd); err != nil {
		return fmt.Errorf("decode delta: %w", err)
	}
	return col.coord.store.SaveRoundDelta(ctx, roundID, rd)
}

// String implements fmt.Stringer for suture logging.
func (col *Collector) String() string {
	return "delta-collector"
}
