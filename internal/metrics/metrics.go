// Package metrics provides Prometheus instrumentation for the matching
// engine: gRPC traffic, swipe stack generation, swipe registration and the
// popularity recompute.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts gRPC calls by method and status code.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swipe_grpc_requests_total",
		Help: "Total number of gRPC requests handled",
	}, []string{"method", "code"})

	// RequestLatency records gRPC handler latency in seconds.
	RequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swipe_grpc_request_latency_seconds",
		Help:    "gRPC handler latency in seconds",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method"})

	// StackSize records how many candidates a generated swipe stack holds.
	StackSize = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swipe_stack_size",
		Help:    "Number of candidates returned per swipe stack",
		Buckets: []float64{0, 1, 5, 10, 15, 20, 30, 50},
	})

	// SwipesTotal counts registered swipe choices by choice.
	SwipesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swipe_choices_total",
		Help: "Total number of swipe choices registered",
	}, []string{"choice"}) // choice = "yes", "no", "super"

	// MatchesTotal counts new matches.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "swipe_matches_total",
		Help: "Total number of matches created",
	})

	// RecomputeRuns counts recompute runs by outcome.
	RecomputeRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "swipe_recompute_runs_total",
		Help: "Popularity recompute runs",
	}, []string{"outcome"}) // outcome = "ok", "skipped", "conflict", "error"

	// RecomputeDuration records recompute wall time in seconds.
	RecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "swipe_recompute_duration_seconds",
		Help:    "Popularity recompute duration in seconds",
		Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300},
	})

	// RankedUsers is the number of users ranked by the last recompute.
	RankedUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "swipe_ranked_users",
		Help: "Users ranked by the last successful recompute",
	})
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestLatency,
		StackSize,
		SwipesTotal,
		MatchesTotal,
		RecomputeRuns,
		RecomputeDuration,
		RankedUsers,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
