// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

/*
Package round coordinates federated training rounds.

A round collects item deltas from any number of participants and aggregates
them exactly once when it is closed:

	Participant.Train ──► Coordinator.Submit ──► watermill topic
	                                                   │
	                                           Collector (persist blob, ack)
	                                                   │
	Coordinator.Close ──► LoadRoundDeltas ──► Aggregator.Apply ──► DeleteRound

The bus is an in-process watermill gochannel configured to block publishers
until the collector acknowledges, so a Submit that returns nil has been
persisted and will be seen by Close. Rounds may close with only part of the
participants; a participant that missed a round simply contributes to a later
one.

The participant side lives here as well: a Participant loads or initializes
its private user vector, trains against a model snapshot, privatizes the
resulting delta and keeps the updated user vector in its own store. Its user
vector and rating history never reach the coordinator.
*/
package round
