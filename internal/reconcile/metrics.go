package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var outcomesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "perla",
		Subsystem: "reconcile",
		Name:      "outcomes_total",
		Help:      "Processed user requests by outcome.",
	},
	[]string{"outcome"},
)
