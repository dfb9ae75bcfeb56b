// Package metrics records trading activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "equities_bot"

// Recorder implements the workflow metrics sink using Prometheus
type Recorder struct {
	registry       *prometheus.Registry
	scans          prometheus.Counter
	opportunities  prometheus.Histogram
	signals        *prometheus.CounterVec
	trades         *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	alerts         *prometheus.CounterVec
	workflowTime   *prometheus.HistogramVec
	workflowResult *prometheus.CounterVec
	breakerOpen    prometheus.Gauge
	dailyLoss      prometheus.Gauge
	openPositions  prometheus.Gauge
}

// New creates a recorder on its own registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		scans: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Completed market scans",
		}),
		opportunities: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_opportunities",
			Help:      "Opportunities found per scan",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signals_total",
			Help:      "Signals produced by source and recommendation",
		}, []string{"source", "recommendation"}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trades_total",
			Help:      "Executed trades by instrument and side",
		}, []string{"instrument", "side"}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Risk rejections by reason class",
		}, []string{"reason"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "position_alerts_total",
			Help:      "Position monitor alerts by type",
		}, []string{"type"}),
		workflowTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Workflow invocation duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"workflow"}),
		workflowResult: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_results_total",
			Help:      "Workflow invocations by final status",
		}, []string{"workflow", "status"}),
		breakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_triggered",
			Help:      "1 while the daily loss circuit breaker is triggered",
		}),
		dailyLoss: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "daily_realized_loss",
			Help:      "Realized loss for the current trading day",
		}),
		openPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_positions",
			Help:      "Open positions at the last check",
		}),
	}
}

// RecordScan records a completed scan
func (r *Recorder) RecordScan(opportunities int) {
	r.scans.Inc()
	r.opportunities.Observe(float64(opportunities))
}

// RecordSignal records a produced signal
func (r *Recorder) RecordSignal(source, recommendation string) {
	r.signals.WithLabelValues(source, recommendation).Inc()
}

// RecordTrade records an executed trade
func (r *Recorder) RecordTrade(instrument, side string) {
	r.trades.WithLabelValues(instrument, side).Inc()
}

// RecordRejection records a risk rejection
func (r *Recorder) RecordRejection(reason string) {
	r.rejections.WithLabelValues(reason).Inc()
}

// RecordAlert records a position alert
func (r *Recorder) RecordAlert(alertType string) {
	r.alerts.WithLabelValues(alertType).Inc()
}

// RecordWorkflow records one workflow invocation
func (r *Recorder) RecordWorkflow(workflow, status string, d time.Duration) {
	r.workflowTime.WithLabelValues(workflow).Observe(d.Seconds())
	r.workflowResult.WithLabelValues(workflow, status).Inc()
}

// RecordCircuitBreaker records breaker state
func (r *Recorder) RecordCircuitBreaker(triggered bool, dailyLoss float64) {
	v := 0.0
	if triggered {
		v = 1
	}
	r.breakerOpen.Set(v)
	r.dailyLoss.Set(dailyLoss)
}

// RecordOpenPositions records the current position count
func (r *Recorder) RecordOpenPositions(n int) {
	r.openPositions.Set(float64(n))
}

// Registry exposes the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
