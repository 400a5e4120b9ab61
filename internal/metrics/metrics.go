package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PassesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wheelbot_passes_total", Help: "Strategy passes by outcome"},
		[]string{"outcome"},
	)
	PassDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wheelbot_pass_duration_seconds",
			Help:    "Wall time of a strategy pass",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wheelbot_orders_total", Help: "Option orders submitted"},
		[]string{"symbol", "type", "status"},
	)
	SkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wheelbot_skips_total", Help: "Symbols skipped during a pass"},
		[]string{"symbol"},
	)
	PremiumCollected = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "wheelbot_premium_collected_dollars", Help: "Premium collected from accepted orders"},
	)
	RunsToday = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "wheelbot_scheduler_runs_today", Help: "Executions so far on the current trading day"},
	)
	SchedulerPhase = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "wheelbot_scheduler_phase", Help: "1 for the scheduler's current phase"},
		[]string{"phase"},
	)
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "wheelbot_http_requests_total", Help: "Status API requests by route and status code"},
		[]string{"route", "code"},
	)
)

func init() {
	prometheus.MustRegister(PassesTotal, PassDuration, OrdersTotal, SkipsTotal, PremiumCollected, RunsToday, SchedulerPhase, HTTPRequestsTotal)
}

// SetPhase marks phase as current and clears the others.
func SetPhase(phase string, all ...string) {
	for _, p := range all {
		SchedulerPhase.WithLabelValues(p).Set(0)
	}
	SchedulerPhase.WithLabelValues(phase).Set(1)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
