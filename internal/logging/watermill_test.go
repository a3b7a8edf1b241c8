// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

func TestWatermillAdapter(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	a := NewWatermillAdapter(zerolog.New(&buf))

	a.Info("subscribed", watermill.LogFields{"topic": "fedmf.deltas"})
	a.Error("publish failed", errors.New("closed"), nil)
	a.With(watermill.LogFields{"round_id": "r1"}).Info("ack", watermill.LogFields{"message_uuid": "m1"})
	a.Debug("hidden at info", nil)

	out := buf.String()
	for _, want := range []string{
		`"topic":"fedmf.deltas"`,
		`"error":"closed"`,
		`"round_id":"r1"`,
		`"message_uuid":"m1"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %s", want, out)
		}
	}
	if strings.Contains(out, "hidden at info") {
		t.Error("debug message logged at info level")
	}
}
