package wallet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// POLBalance tracks the current POL balance for redemption gas.
	POLBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_wallet_pol_balance",
		Help: "Current POL balance in wallet (native units)",
	})

	// USDCBalanceGauge tracks the current USDC balance for betting.
	USDCBalanceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_wallet_usdc_balance",
		Help: "Current USDC balance in wallet (USD)",
	})

	// USDCAllowanceGauge tracks the USDC allowance approved to CTF Exchange.
	USDCAllowanceGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_wallet_usdc_allowance",
		Help: "USDC allowance approved to CTF Exchange (USD)",
	})

	// UpdateErrorsTotal tracks the number of failed balance fetch attempts.
	UpdateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "updown_wallet_update_errors_total",
		Help: "Total number of failed wallet balance updates",
	})

	// UpdateDuration tracks the time taken to fetch wallet balances.
	UpdateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_wallet_update_duration_seconds",
		Help:    "Time taken to fetch wallet balances (seconds)",
		Buckets: prometheus.DefBuckets,
	})

	// LastUpdateTimestamp tracks the Unix timestamp of the last successful update.
	LastUpdateTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "updown_wallet_last_update_timestamp",
		Help: "Unix timestamp of last successful wallet update",
	})
)
