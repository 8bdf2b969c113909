package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollDurationSeconds tracks the duration of discovery polls.
	PollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_discovery_poll_duration_seconds",
		Help:    "Duration of market discovery polls",
		Buckets: prometheus.DefBuckets,
	})

	// PollErrorsTotal tracks failed discovery polls.
	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_discovery_poll_errors_total",
		Help: "Total failed discovery polls",
	})

	// MarketsSeenTotal tracks candle markets returned by the API.
	MarketsSeenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_discovery_markets_seen_total",
		Help: "Total candle markets returned by discovery polls",
	})

	// NewMarketsTotal tracks newly discovered candle markets.
	NewMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_discovery_new_markets_total",
		Help: "Total new candle markets handed to the session manager",
	})

	// MarketsSkippedTotal tracks markets skipped by filter reason.
	MarketsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_discovery_markets_skipped_total",
			Help: "Total candle markets skipped",
		},
		[]string{"reason"},
	)
)
