// Package metrics provides Prometheus instrumentation for the trading engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CyclesTotal counts completed evaluation cycles.
	CyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anomalybot_cycles_total",
		Help: "Total number of evaluation cycles completed",
	})

	// CycleDuration tracks how long a full cycle takes.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "anomalybot_cycle_duration_seconds",
		Help:    "Evaluation cycle duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// SignalsTotal counts signals by resulting action.
	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anomalybot_signals_total",
		Help: "Total anomaly signals produced, by action",
	}, []string{"action"})

	// SymbolSkipsTotal counts per-symbol evaluations skipped, by reason.
	SymbolSkipsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anomalybot_symbol_skips_total",
		Help: "Symbol evaluations skipped, by reason",
	}, []string{"reason"})

	// OrdersTotal counts filled orders by side.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anomalybot_orders_total",
		Help: "Total orders filled, by side",
	}, []string{"side"})

	// OrderErrorsTotal counts orders rejected by the brokerage, by side.
	OrderErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anomalybot_order_errors_total",
		Help: "Total orders rejected by the brokerage, by side",
	}, []string{"side"})

	// OpenTranches tracks logical positions currently open across symbols.
	OpenTranches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anomalybot_open_tranches",
		Help: "Logical positions currently open across all symbols",
	})

	// ReconcileMismatchesTotal counts book vs brokerage share mismatches.
	ReconcileMismatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anomalybot_reconciliation_mismatches_total",
		Help: "Tracked vs reported share-count mismatches observed",
	})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
