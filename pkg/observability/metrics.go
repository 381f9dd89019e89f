// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the authgate dispatcher.
package observability

import "github.com/prometheus/client_golang/prometheus"

// AuthBuckets defines histogram buckets suited for request latencies that
// include strategy I/O (credential store and replay cache lookups),
// ranging from 1ms to 5s.
var AuthBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authgate_request_duration_seconds",
			Help:    "Request duration",
			Buckets: AuthBuckets,
		},
		[]string{"method"},
	)

	// InFlightRequests tracks the number of requests being served.
	InFlightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "authgate_requests_in_flight",
			Help: "Requests in flight",
		},
	)

	// StrategyAttemptsTotal counts strategy calls by strategy name and
	// result (success, missing, failure, invalid).
	StrategyAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_strategy_attempts_total",
			Help: "Strategy authentication attempts",
		},
		[]string{"strategy", "result"},
	)

	// AuthDecisionsTotal counts pipeline outcomes by route mode.
	AuthDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_auth_decisions_total",
			Help: "Authentication pipeline outcomes",
		},
		[]string{"mode", "outcome"},
	)

	// PolicyViolationsTotal counts forbidden outcomes by reason.
	PolicyViolationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_policy_violations_total",
			Help: "Policy violations",
		},
		[]string{"reason"},
	)

	// ReplaysRejectedTotal counts signed requests rejected for reusing a
	// nonce.
	ReplaysRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authgate_replays_rejected_total",
			Help: "Replayed nonces",
		},
		[]string{"strategy"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		InFlightRequests,
		StrategyAttemptsTotal,
		AuthDecisionsTotal,
		PolicyViolationsTotal,
		ReplaysRejectedTotal,
	)
}
