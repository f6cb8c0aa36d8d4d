// Package metrics exposes the process-wide Prometheus instruments. All
// instruments register once at package init; Handler serves them for
// scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_requests_total",
		Help: "Total HTTP API requests by route and status code",
	}, []string{"route", "code"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geodata_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geodata_rate_limited_total",
		Help: "Total HTTP requests rejected by the rate limiter",
	})

	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_runs_total",
		Help: "Pipeline runs reaching a terminal status",
	}, []string{"status"})
	PhaseDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geodata_phase_duration_seconds",
		Help:    "Pipeline phase duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"phase"})

	RecordsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_records_ingested_total",
		Help: "Source records loaded per layer",
	}, []string{"layer"})
	RecordsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_records_skipped_total",
		Help: "Source records skipped per layer and reason",
	}, []string{"layer", "reason"})

	KPIValuesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geodata_kpi_values_total",
		Help: "Per-cell KPI values computed, by KPI name",
	}, []string{"kpi"})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(RateLimitedTotal)
	prometheus.MustRegister(RunsTotal)
	prometheus.MustRegister(PhaseDurationSeconds)
	prometheus.MustRegister(RecordsIngestedTotal)
	prometheus.MustRegister(RecordsSkippedTotal)
	prometheus.MustRegister(KPIValuesTotal)
}

// Handler returns the scrape endpoint for the registered instruments.
func Handler() http.Handler { return promhttp.Handler() }

// ObserveIngest records a loader's stats for one layer.
func ObserveIngest(layer string, loaded int, skipped map[string]int) {
	RecordsIngestedTotal.WithLabelValues(layer).Add(float64(loaded))
	for reason, n := range skipped {
		RecordsSkippedTotal.WithLabelValues(layer, reason).Add(float64(n))
	}
}
