// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationreviews_feed_fetches_total",
			Help: "Fetches scheduled by the feed controller",
		},
		[]string{"kind"},
	)

	FeedStaleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationreviews_feed_stale_results_total",
			Help: "Fetch results dropped because a newer selection or load superseded them",
		},
		[]string{"kind"},
	)

	FeedFetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationreviews_feed_fetch_errors_total",
			Help: "Fetches that completed with an error",
		},
		[]string{"kind"},
	)

	FeedMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationreviews_feed_mutations_total",
			Help: "Review submissions and deletions by outcome",
		},
		[]string{"op", "result"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationreviews_api_requests_total",
			Help: "Requests served by the review API",
		},
		[]string{"method", "route", "status"},
	)

	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stationreviews_api_request_seconds",
			Help:    "Review API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	StatsCompute = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stationreviews_stats_compute_seconds",
			Help:    "Time spent aggregating station statistics",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	ClientRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stationreviews_client_retries_total",
			Help: "Idempotent API requests retried by the HTTP client",
		},
		[]string{"op"},
	)
)
