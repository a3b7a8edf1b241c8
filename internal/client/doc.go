// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

/*
Package client is the participant side of the coordinator HTTP API.

Client wraps every endpoint of internal/api. Requests are paced with a
golang.org/x/time/rate token bucket and guarded by a sony/gobreaker circuit
breaker that opens after consecutive 5xx or transport failures. 4xx responses
are returned as *StatusError, which unwraps to the federated sentinel errors
(federated.ErrNotFound, round.ErrRoundNotOpen, ...) and never trips the breaker.

Runner combines a Client with a local round.Participant:

	c, _ := client.New(client.Config{BaseURL: "http://coordinator:8471"})
	runner := client.NewRunner(c, participant, logger)
	rnd, _ := c.OpenRound(ctx)
	_, err := runner.Contribute(ctx, rnd.ID, 0)

The participant's ratings and user vector stay local; only privatized deltas
and interaction deltas are sent.
*/
package client
