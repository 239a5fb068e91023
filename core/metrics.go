package core

// Engine metrics (SPEC_FULL ambient stack): process-wide Prometheus
// collectors exposed by the optional HTTP daemon front-end's /metrics
// endpoint (cmd/cli/daemon.go). Declared once at package scope, the same
// way promauto.New* is used everywhere in the ecosystem — a second Engine
// in the same process shares the same counters/gauges, which is correct:
// they describe the whole host, not one tenant.

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSwapsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_engine_swaps_total",
		Help: "Total number of completed SwapSimple operations.",
	})

	metricDexCallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dex_engine_dex_calls_total",
		Help: "Total number of completed DexCall operations.",
	})

	metricWithdrawalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_engine_withdrawals_total",
		Help: "Total number of dispatched withdrawals, by outcome.",
	}, []string{"outcome"})

	metricStorageBytesUsed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dex_engine_storage_bytes_used",
		Help: "Billed storage bytes used, per principal key.",
	}, []string{"key"})
)
