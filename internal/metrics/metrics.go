// Package metrics defines the Prometheus instrumentation for the trading
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every collector the pipeline updates. All collectors are
// registered on the registry passed to New, so tests can use private
// registries without global state collisions.
type Metrics struct {
	Cycles        prometheus.Counter
	CycleDuration prometheus.Histogram
	QuotesFetched prometheus.Gauge
	Opportunities *prometheus.CounterVec // by type
	Rejections    *prometheus.CounterVec // by reason
	Executions    *prometheus.CounterVec // by status
	DailyPnL      prometheus.Gauge
	InFlight      prometheus.Gauge
}

// New creates and registers the pipeline collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "xrparb_cycles_total",
			Help: "Trading cycles completed.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "xrparb_cycle_duration_seconds",
			Help:    "Wall time of one full trading cycle.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		QuotesFetched: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xrparb_quotes_fetched",
			Help: "Quotes in the last cycle's snapshot.",
		}),
		Opportunities: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xrparb_opportunities_total",
			Help: "Opportunities detected, by type.",
		}, []string{"type"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xrparb_risk_rejections_total",
			Help: "Opportunities rejected by the risk assessor, by reason.",
		}, []string{"reason"}),
		Executions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "xrparb_executions_total",
			Help: "Executions reaching a terminal status, by status.",
		}, []string{"status"}),
		DailyPnL: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xrparb_daily_pnl",
			Help: "Realized profit and loss for the current trading day.",
		}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "xrparb_executions_in_flight",
			Help: "Executions currently live.",
		}),
	}
}
