package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pool metrics
	PoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coinfair_pool_count",
		Help: "Total number of pools in the ledger",
	})

	PoolsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinfair_pools_created_total",
		Help: "Total number of pools created",
	})

	// Swap metrics
	SwapRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinfair_swap_requests_total",
			Help: "Total number of swap requests",
		},
		[]string{"router", "swap_mode", "status"},
	)

	SwapDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinfair_swap_duration_seconds",
			Help:    "Swap execution duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.02, 0.05},
		},
		[]string{"router", "swap_mode"},
	)

	SwapHops = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coinfair_swap_hops",
		Help:    "Number of hops per executed swap",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8},
	})

	// Liquidity metrics
	LiquidityOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinfair_liquidity_ops_total",
			Help: "Total number of liquidity mutations",
		},
		[]string{"router", "op", "status"},
	)

	// Referral and treasury metrics
	ReferralMints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinfair_referral_mints_total",
		Help: "Total number of referral mint operations",
	})

	ReferralClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinfair_referral_claims_total",
			Help: "Total number of referral claim attempts",
		},
		[]string{"status"},
	)

	RebateSettlements = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinfair_rebate_settlements_total",
		Help: "Total number of swap fee settlements that credited a referrer",
	})

	TreasuryWithdrawals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinfair_treasury_withdrawals_total",
			Help: "Total number of rebate withdrawal attempts",
		},
		[]string{"status"},
	)

	// Persistence metrics
	SnapshotSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinfair_snapshot_saves_total",
			Help: "Total number of state snapshot saves",
		},
		[]string{"status"},
	)

	SnapshotDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "coinfair_snapshot_duration_seconds",
		Help:    "State snapshot save duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinfair_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinfair_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
