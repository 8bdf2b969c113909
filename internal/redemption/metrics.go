package redemption

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are package-level by convention
var (
	// SweepsTotal counts redemption sweeps by result.
	SweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_redemption_sweeps_total",
		Help: "Total redemption sweeps",
	}, []string{"result"})

	// BetsCheckedTotal counts pending bets examined during sweeps.
	BetsCheckedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_redemption_bets_checked_total",
		Help: "Total pending bets examined",
	})

	// OutcomesTotal counts per-bet sweep outcomes.
	OutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_redemption_outcomes_total",
		Help: "Per-bet sweep outcomes",
	}, []string{"outcome"})

	// SweepDurationSeconds observes how long a full sweep takes.
	SweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_redemption_sweep_duration_seconds",
		Help:    "Duration of a full redemption sweep",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	})
)
