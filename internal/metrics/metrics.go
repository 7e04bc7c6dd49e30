// Auscultor - Shared Playlist Engagement Analytics
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/auscultor

// Package metrics provides Prometheus instrumentation for:
//   - Database query performance (DuckDB)
//   - API endpoint latency and throughput
//   - Sweep operation outcomes
//   - Upstream provider calls and circuit breaker state
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
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

	// Sweep Operation Metrics
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sweep_duration_seconds",
			Help:    "Duration of ingestion sweeps in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SweepConnectionsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_connections_processed_total",
			Help: "Total number of connections processed by sweeps",
		},
	)

	SweepPlaysAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_plays_added_total",
			Help: "Total number of new play events persisted by sweeps",
		},
	)

	SweepDuplicatesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_duplicates_skipped_total",
			Help: "Total number of duplicate plays skipped during ingest",
		},
	)

	SweepSessionsDerived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweep_sessions_derived_total",
			Help: "Total number of listening sessions derived by sweeps",
		},
	)

	SweepErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_errors_total",
			Help: "Total number of per-connection sweep errors",
		},
		[]string{"error_type"}, // "auth", "upstream", "persistence", "invariant", "other"
	)

	SweepLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sweep_last_success_timestamp",
			Help: "Unix timestamp of last successful sweep",
		},
	)

	// Retention Sweep Metrics
	RetentionDeactivated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_connections_deactivated_total",
			Help: "Total number of connections deactivated by retention sweeps",
		},
	)

	// Upstream Provider Metrics
	SpotifyRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spotify_request_duration_seconds",
			Help:    "Duration of streaming provider API calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	SpotifyRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spotify_request_errors_total",
			Help: "Total number of streaming provider API errors",
		},
		[]string{"operation", "error_type"}, // error_type: "auth", "rate_limit", "transport", "status"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
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

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSweep records the outcome of one ingestion sweep.
func RecordSweep(duration time.Duration, processed, playsAdded, duplicates, sessions, errCount int) {
	SweepDuration.Observe(duration.Seconds())
	SweepConnectionsProcessed.Add(float64(processed))
	SweepPlaysAdded.Add(float64(playsAdded))
	SweepDuplicatesSkipped.Add(float64(duplicates))
	SweepSessionsDerived.Add(float64(sessions))
	if errCount == 0 {
		SweepLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordSweepError records a classified per-connection sweep error.
func RecordSweepError(errorType string) {
	SweepErrors.WithLabelValues(errorType).Inc()
}

// RecordSpotifyRequest records a streaming provider API call.
func RecordSpotifyRequest(operation string, duration time.Duration, errorType string) {
	SpotifyRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if errorType != "" {
		SpotifyRequestErrors.WithLabelValues(operation, errorType).Inc()
	}
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
