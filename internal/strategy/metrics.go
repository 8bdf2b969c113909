package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DecisionsTotal tracks side decisions per outcome.
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_strategy_decisions_total",
			Help: "Total side decisions by outcome",
		},
		[]string{"outcome"},
	)

	// BudgetRejectionsTotal tracks stakes rejected for insufficient budget.
	BudgetRejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_strategy_budget_rejections_total",
		Help: "Total stake reservations rejected for insufficient budget",
	})

	// ProfitProtectionFired reports whether profit protection has locked in.
	ProfitProtectionFired = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "updown_strategy_profit_protection_active",
			Help: "1 once profit protection has locked the profit floor",
		},
		[]string{"strategy"},
	)
)
