package pricefeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CurrentPrice tracks the most recent price per asset.
	CurrentPrice = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "updown_pricefeed_current_price",
			Help: "Most recent observed price per asset",
		},
		[]string{"asset"},
	)

	// TicksProcessedTotal tracks ticks accepted into the feed.
	TicksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_pricefeed_ticks_processed_total",
			Help: "Total price ticks processed per asset and source",
		},
		[]string{"asset", "source"},
	)

	// RESTFallbackTotal tracks REST polls triggered by stale stream data.
	RESTFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_pricefeed_rest_fallback_total",
			Help: "Total REST price polls triggered by a stale stream",
		},
		[]string{"asset", "result"},
	)

	// SubscriberCount tracks active tick subscribers.
	SubscriberCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_pricefeed_subscribers",
		Help: "Number of active price tick subscribers",
	})

	// HistorySize tracks retained history points per asset.
	HistorySize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "updown_pricefeed_history_points",
			Help: "Number of retained price history points per asset",
		},
		[]string{"asset"},
	)
)
