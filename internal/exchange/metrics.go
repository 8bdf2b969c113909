package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersPlacedTotal tracks order submissions by outcome.
	OrdersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_exchange_orders_placed_total",
			Help: "Total order submissions",
		},
		[]string{"status"},
	)

	// OrderLatencySeconds tracks order submission latency.
	OrderLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_exchange_order_latency_seconds",
		Help:    "Order submission latency",
		Buckets: prometheus.DefBuckets,
	})

	// ProbabilityLookupsTotal tracks midpoint lookups by outcome.
	ProbabilityLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_exchange_probability_lookups_total",
			Help: "Total implied-probability lookups",
		},
		[]string{"status"},
	)
)
