package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks active price stream connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_stream_active_connections",
		Help: "Number of active price stream connections",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_stream_reconnect_attempts_total",
		Help: "Total number of price stream reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_stream_reconnect_failures_total",
		Help: "Total number of price stream reconnection failures",
	})

	// DegradedMode reports whether the stream is in REST fallback mode.
	DegradedMode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_stream_degraded_mode",
		Help: "1 when the price stream has fallen back to REST polling",
	})

	// TicksReceivedTotal tracks price ticks received per symbol.
	TicksReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_stream_ticks_received_total",
			Help: "Total number of price ticks received",
		},
		[]string{"symbol"},
	)

	// TicksDroppedTotal tracks ticks dropped due to full channel.
	TicksDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_stream_ticks_dropped_total",
			Help: "Total number of price ticks dropped",
		},
		[]string{"reason"},
	)

	// ConnectionDuration tracks stream connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_stream_connection_duration_seconds",
		Help:    "Duration of price stream connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})
)
