package assistant

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perla",
			Subsystem: "assistant",
			Name:      "requests_total",
			Help:      "Assistant requests by resulting response kind.",
		},
		[]string{"kind"},
	)

	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perla",
			Subsystem: "assistant",
			Name:      "attempts_total",
			Help:      "Provider calls by outcome (ok, transient, permanent).",
		},
		[]string{"outcome"},
	)

	requestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "perla",
			Subsystem: "assistant",
			Name:      "request_duration_seconds",
			Help:      "End-to-end assistant request latency including retries.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
	)
)
