package settlement

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics are package-level by convention
var (
	// EndpointDialsTotal counts RPC endpoint dial attempts by endpoint and result.
	EndpointDialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_settlement_endpoint_dials_total",
		Help: "Total RPC endpoint dial attempts",
	}, []string{"endpoint", "result"})

	// ContractCallsTotal counts read-only contract calls by method and result.
	ContractCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_settlement_contract_calls_total",
		Help: "Total read-only CTF contract calls",
	}, []string{"method", "result"})

	// RedemptionTxTotal counts redemption transactions by result.
	RedemptionTxTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "updown_settlement_redemption_tx_total",
		Help: "Total redemption transactions submitted",
	}, []string{"result"})

	// RedemptionGasUsed observes gas used by confirmed redemption transactions.
	RedemptionGasUsed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "updown_settlement_redemption_gas_used",
		Help:    "Gas used by confirmed redemption transactions",
		Buckets: prometheus.ExponentialBuckets(50000, 2, 6),
	})
)
