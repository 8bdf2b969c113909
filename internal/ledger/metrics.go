package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BetsPlacedTotal tracks bets created per side.
	BetsPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_ledger_bets_placed_total",
			Help: "Total bets placed",
		},
		[]string{"asset", "timeframe", "side"},
	)

	// BetsResolvedTotal tracks bets settled per result.
	BetsResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "updown_ledger_bets_resolved_total",
			Help: "Total bets resolved",
		},
		[]string{"result"},
	)

	// BetsRedeemedTotal tracks on-chain redemptions recorded.
	BetsRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_ledger_bets_redeemed_total",
		Help: "Total bets redeemed on chain",
	})

	// AmountInvestedTotal tracks USDC staked.
	AmountInvestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_ledger_invested_usdc_total",
		Help: "Total USDC staked across all bets",
	})

	// CurrentBudget tracks the live budget per strategy.
	CurrentBudget = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "updown_ledger_current_budget_usdc",
			Help: "Current available budget per strategy",
		},
		[]string{"strategy"},
	)

	// RealizedPnL tracks net profit per strategy.
	RealizedPnL = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "updown_ledger_realized_pnl_usdc",
			Help: "Realized profit and loss per strategy",
		},
		[]string{"strategy"},
	)
)
