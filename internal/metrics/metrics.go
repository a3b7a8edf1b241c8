// FedMF - Federated Matrix-Factorization Recommender
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fedmf

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Factor Store Metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedmf_store_operation_duration_seconds",
			Help:    "Duration of factor store operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmf_store_operation_errors_total",
			Help: "Total number of failed factor store operations",
		},
		[]string{"operation"},
	)

	// Model Metrics
	ModelRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fedmf_model_rows",
			Help: "Number of rows in the item-factor matrix",
		},
		[]string{"scope"},
	)

	ModelVocabularySize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fedmf_model_vocabulary_size",
			Help: "Number of titles in the model vocabulary",
		},
		[]string{"scope"},
	)

	ModelVersion = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fedmf_model_version",
			Help: "Current persisted model version",
		},
		[]string{"scope"},
	)

	ItemsGrown = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fedmf_items_grown_total",
			Help: "Total number of titles added to a vocabulary after initialization",
		},
	)

	// Aggregation Metrics
	AggregationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedmf_aggregation_duration_seconds",
			Help:    "Duration of load-aggregate-persist cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	AggregationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmf_aggregations_total",
			Help: "Total number of aggregations by result",
		},
		[]string{"scope", "result"}, // result: "success", "failure"
	)

	AggregationParticipants = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedmf_aggregation_participants",
			Help:    "Number of participant deltas merged per aggregation",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	AggregationItemsUpdated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmf_aggregation_items_updated_total",
			Help: "Total number of item rows changed by aggregation",
		},
		[]string{"scope"},
	)

	// Privacy Metrics
	PrivatizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmf_privatizations_total",
			Help: "Total number of deltas clipped or noised",
		},
		[]string{"side"}, // side: "client", "server"
	)

	ClippedVectors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmf_clipped_vectors_total",
			Help: "Total number of vectors scaled down by L2 clipping",
		},
		[]string{"side"},
	)

	// Round Metrics
	RoundsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fedmf_rounds_open",
			Help: "Number of rounds currently open",
		},
		[]string{"scope"},
	)

	RoundsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmf_rounds_closed_total",
			Help: "Total number of closed rounds by result",
		},
		[]string{"scope", "result"},
	)

	RoundDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fedmf_round_close_duration_seconds",
			Help:    "Duration of closing a round in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"scope"},
	)

	RoundSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmf_round_submissions_total",
			Help: "Total number of submissions aggregated by closed rounds",
		},
		[]string{"scope"},
	)

	DeltasReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fedmf_deltas_received_total",
			Help: "Total number of submitted deltas consumed from the bus",
		},
		[]string{"scope", "result"},
	)

	// Participant Metrics
	TrainingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedmf_training_duration_seconds",
			Help:    "Duration of local training in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	TrainingPairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fedmf_training_pairs_total",
			Help: "Total number of rating records used for training",
		},
	)

	TrainingSkippedTitles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fedmf_training_skipped_titles_total",
			Help: "Total number of rating records skipped because their title is unknown",
		},
	)

	TrainingErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fedmf_training_errors_total",
			Help: "Total number of failed local training runs",
		},
	)

	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedmf_recommendation_duration_seconds",
			Help:    "Duration of ranking in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	RecommendationResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fedmf_recommendation_results",
			Help:    "Number of titles returned per recommendation",
			Buckets: []float64{0, 1, 3, 6, 10, 25, 100},
		},
	)

	RecommendationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fedmf_recommendation_errors_total",
			Help: "Total number of failed recommendations",
		},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordStoreOperation records a factor store operation
func RecordStoreOperation(operation string, duration time.Duration, err error) {
	StoreOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		StoreOperationErrors.WithLabelValues(operation).Inc()
	}
}

// SetModelShape publishes the size and version of a persisted model
func SetModelShape(scope string, rows, vocabularySize int, version uint64) {
	ModelRows.WithLabelValues(scope).Set(float64(rows))
	ModelVocabularySize.WithLabelValues(scope).Set(float64(vocabularySize))
	ModelVersion.WithLabelValues(scope).Set(float64(version))
}

// RecordItemGrowth counts a title added after initialization
func RecordItemGrowth() {
	ItemsGrown.Inc()
}

// RecordAggregation records one load-aggregate-persist cycle. Server-side
// clipping is counted under the "server" side.
func RecordAggregation(scope string, participants, itemsUpdated, clipped int, duration time.Duration, err error) {
	AggregationDuration.WithLabelValues(scope).Observe(duration.Seconds())
	AggregationsTotal.WithLabelValues(scope, result(err)).Inc()
	if err != nil {
		return
	}
	AggregationParticipants.Observe(float64(participants))
	AggregationItemsUpdated.WithLabelValues(scope).Add(float64(itemsUpdated))
	if clipped > 0 {
		ClippedVectors.WithLabelValues("server").Add(float64(clipped))
	}
}

// RecordPrivatization counts a privatized delta and the vectors it clipped
func RecordPrivatization(side string, clipped int) {
	PrivatizationsTotal.WithLabelValues(side).Inc()
	if clipped > 0 {
		ClippedVectors.WithLabelValues(side).Add(float64(clipped))
	}
}

// SetOpenRounds publishes the number of open rounds
func SetOpenRounds(scope string, n int) {
	RoundsOpen.WithLabelValues(scope).Set(float64(n))
}

// RecordRound records a round close attempt
func RecordRound(scope string, participants int, duration time.Duration, err error) {
	RoundsClosed.WithLabelValues(scope, result(err)).Inc()
	RoundDuration.WithLabelValues(scope).Observe(duration.Seconds())
	if err == nil {
		RoundSubmissions.WithLabelValues(scope).Add(float64(participants))
	}
}

// RecordDeltaReceived records a delta consumed from the bus
func RecordDeltaReceived(scope string, err error) {
	DeltasReceived.WithLabelValues(scope, result(err)).Inc()
}

// RecordTraining records a local training run
func RecordTraining(duration time.Duration, pairs, skipped int, err error) {
	TrainingDuration.Observe(duration.Seconds())
	if err != nil {
		TrainingErrors.Inc()
		return
	}
	TrainingPairs.Add(float64(pairs))
	TrainingSkippedTitles.Add(float64(skipped))
}

// RecordRecommendation records a ranking call
func RecordRecommendation(duration time.Duration, results int, err error) {
	RecommendationDuration.Observe(duration.Seconds())
	if err != nil {
		RecommendationErrors.Inc()
		return
	}
	RecommendationResults.Observe(float64(results))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit counts a request rejected by the rate limiter
func RecordRateLimitHit(endpoint string) {
	APIRateLimitHits.WithLabelValues(endpoint).Inc()
}

// SetAppInfo publishes build information
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}
