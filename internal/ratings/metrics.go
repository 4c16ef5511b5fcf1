package ratings

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recomputeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tour_rating_recompute_failures_total",
		Help: "Total number of failed tour rating recomputations",
	})

	recomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tour_rating_recompute_duration_seconds",
		Help:    "Duration of tour rating recomputations in seconds, lock wait included",
		Buckets: prometheus.DefBuckets,
	})
)
