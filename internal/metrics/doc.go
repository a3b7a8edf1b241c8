// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

/*
Package metrics provides Prometheus metrics for the coordinator and the
participant-side components.

All collectors are registered on the default registry through promauto and
are exposed at /metrics:

	curl http://localhost:8471/metrics

# Available Metrics

Factor store:
  - fedmf_store_operation_duration_seconds (histogram, labels: operation)
  - fedmf_store_operation_errors_total (counter, labels: operation)

Model:
  - fedmf_model_rows, fedmf_model_vocabulary_size, fedmf_model_version
    (gauges, labels: scope)
  - fedmf_items_grown_total (counter)

Aggregation and rounds:
  - fedmf_aggregation_duration_seconds (histogram, labels: scope)
  - fedmf_aggregations_total (counter, labels: scope, result)
  - fedmf_aggregation_participants (histogram)
  - fedmf_aggregation_items_updated_total (counter, labels: scope)
  - fedmf_rounds_open (gauge, labels: scope)
  - fedmf_rounds_closed_total (counter, labels: scope, result)
  - fedmf_round_close_duration_seconds (histogram, labels: scope)
  - fedmf_round_submissions_total (counter, labels: scope)
  - fedmf_deltas_received_total (counter, labels: scope, result)

Privacy:
  - fedmf_privatizations_total (counter, labels: side)
  - fedmf_clipped_vectors_total (counter, labels: side)
    side is "client" for participant deltas, "server" for merged updates

Participant:
  - fedmf_training_duration_seconds (histogram)
  - fedmf_training_pairs_total, fedmf_training_skipped_titles_total,
    fedmf_training_errors_total (counters)
  - fedmf_recommendation_duration_seconds, fedmf_recommendation_results
    (histograms)
  - fedmf_recommendation_errors_total (counter)

HTTP and client:
  - api_requests_total, api_request_duration_seconds, api_active_requests,
    api_rate_limit_hits_total
  - circuit_breaker_state (0=closed, 1=half-open, 2=open),
    circuit_breaker_requests_total, circuit_breaker_consecutive_failures,
    circuit_breaker_state_transitions_total

# Usage

	start := time.Now()
	snap, summary, err := agg.Apply(ctx, scope, req)
	metrics.RecordAggregation(scope, summary.Participants, summary.ItemsUpdated,
	    summary.Clipped, time.Since(start), err)

# Thread Safety

Prometheus collectors are safe for concurrent use; every Record function may
be called from any goroutine.
*/
package metrics
