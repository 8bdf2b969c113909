package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are package-level by convention
var (
	// ActiveSessions tracks the number of open market sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_session_active",
		Help: "Number of open market sessions",
	})

	// SessionsOpenedTotal counts admitted market sessions.
	SessionsOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_sessions_opened_total",
		Help: "Total market sessions opened",
	}, []string{"asset", "timeframe"})

	// SessionsClosedTotal counts closed sessions by outcome.
	SessionsClosedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_sessions_closed_total",
		Help: "Total market sessions closed",
	}, []string{"outcome"})

	// SidesLockedTotal counts side locks by side and reason.
	SidesLockedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_session_sides_locked_total",
		Help: "Total session side locks",
	}, []string{"side", "reason"})

	// TranchesFiredTotal counts executed tranches.
	TranchesFiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_session_tranches_fired_total",
		Help: "Total tranches executed",
	}, []string{"asset", "timeframe"})

	// TranchesDeclinedTotal counts due tranches that did not fire.
	TranchesDeclinedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_session_tranches_declined_total",
		Help: "Total due tranches declined",
	}, []string{"reason"})

	// TickErrorsTotal counts per-session tick failures.
	TickErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_session_tick_errors_total",
		Help: "Total per-session tick failures",
	})
)
