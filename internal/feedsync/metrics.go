package feedsync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_fetches_total",
			Help: "Feed page fetches by kind (posts, comments) and outcome",
		},
		[]string{"kind", "outcome"},
	)

	staleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_stale_responses_total",
			Help: "Fetch responses dropped because a newer fetch superseded them",
		},
		[]string{"kind"},
	)
)
