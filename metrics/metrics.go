// Package metrics provides Prometheus metrics for the market maker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QuotesGenerated 按市场统计生成的报价组数
	QuotesGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_quotes_generated_total",
		Help: "Number of quote sets generated per market",
	}, []string{"market"})

	// OrdersSent counts outbound order placements by market and result.
	OrdersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_sent_total",
		Help: "Number of orders sent per market and result",
	}, []string{"market", "result"})

	// OrdersCancelled counts cancel requests dispatched.
	OrdersCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_orders_cancelled_total",
		Help: "Number of cancel requests per market",
	}, []string{"market"})

	// Fills counts confirmed fills (paper and live alike).
	Fills = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_fills_total",
		Help: "Number of fills per market and side",
	}, []string{"market", "side"})

	// RiskDecisions counts risk manager outcomes by action.
	RiskDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_risk_decisions_total",
		Help: "Risk decisions per market and action",
	}, []string{"market", "action"})

	// KillSwitchActive 1 表示已触发
	KillSwitchActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_kill_switch_active",
		Help: "1 when the kill switch is tripped",
	})

	// Inventory 当前净仓位（YES − NO）
	Inventory = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mm_inventory",
		Help: "Net inventory (YES minus NO contracts) per market",
	}, []string{"market"})

	// RealizedPnL 累计已实现盈亏
	RealizedPnL = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mm_realized_pnl",
		Help: "Realized PnL per market",
	}, []string{"market"})

	// LimiterQueueDepth is the number of write operations waiting for tokens.
	LimiterQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_limiter_queue_depth",
		Help: "Outbound operations queued behind the rate limiter",
	})

	// CyclesSkipped counts decision cycles skipped due to input errors.
	CyclesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_cycles_skipped_total",
		Help: "Decision cycles skipped per market and reason",
	}, []string{"market", "reason"})

	// ReconcileMismatches counts reconciliation divergences beyond tolerance.
	ReconcileMismatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_reconcile_mismatches_total",
		Help: "Reconciliation mismatches per market",
	}, []string{"market"})

	// ConfigReloads counts reconfiguration attempts by outcome.
	ConfigReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_config_reloads_total",
		Help: "Configuration reloads by outcome (applied, rolled_back, rejected)",
	}, []string{"outcome"})
)

// StartMetricsServer 启动 Prometheus 指标服务器
func StartMetricsServer(addr string) {
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		_ = http.ListenAndServe(addr, nil)
	}()
}
