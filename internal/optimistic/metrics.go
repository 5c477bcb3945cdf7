package optimistic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_mutations_total",
			Help: "Optimistic feed writes by mutation and outcome",
		},
		[]string{"mutation", "outcome"},
	)

	remoteSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "feed_mutation_remote_seconds",
			Help:    "Time spent waiting for the backend to answer a feed write",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"mutation"},
	)
)
