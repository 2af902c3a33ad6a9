// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing, so library code never needs a registry.
type Metrics struct {
	// Ingestion metrics
	CandlesIngested  *prometheus.CounterVec
	IngestErrors     *prometheus.CounterVec
	WSMessageLatency prometheus.Histogram

	// Engine metrics
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	BarsProcessed  prometheus.Counter
	ProposalsBuilt prometheus.Counter
	TradesAdmitted prometheus.Counter
	TradesSkipped  prometheus.Counter
	EventErrors    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics registers all metrics on the given registerer. A nil
// registerer uses the default registry.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "backtest_lab"
	}
	factory := promauto.With(reg)

	return &Metrics{
		CandlesIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "candles_ingested_total",
			Help:      "Total number of candles ingested by symbol",
		}, []string{"symbol"}),
		IngestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "errors_total",
			Help:      "Total number of ingestion errors by source",
		}, []string{"source"}),
		WSMessageLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ws_message_latency_seconds",
			Help:      "WebSocket message processing latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "run_duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),
		BarsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "bars_processed_total",
			Help:      "Total number of timeline bars processed",
		}),
		ProposalsBuilt: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "proposals_built_total",
			Help:      "Total number of trade proposals built",
		}),
		TradesAdmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_admitted_total",
			Help:      "Total number of proposals admitted to the portfolio",
		}),
		TradesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_skipped_total",
			Help:      "Total number of proposals rejected by admission checks",
		}),
		EventErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "event_errors_total",
			Help:      "Total number of trade events skipped on ingest errors",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),
	}
}

// RecordCandles counts ingested candles for a symbol.
func (m *Metrics) RecordCandles(symbol string, n int) {
	if m == nil {
		return
	}
	m.CandlesIngested.WithLabelValues(symbol).Add(float64(n))
}

// RecordIngestError counts one ingestion error for a source.
func (m *Metrics) RecordIngestError(source string) {
	if m == nil {
		return
	}
	m.IngestErrors.WithLabelValues(source).Inc()
}

// RecordRun records one completed run with its duration.
func (m *Metrics) RecordRun(status string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(seconds)
}

// RecordBar counts one processed timeline bar.
func (m *Metrics) RecordBar() {
	if m == nil {
		return
	}
	m.BarsProcessed.Inc()
}

// RecordProposal counts one built proposal and its admission outcome.
func (m *Metrics) RecordProposal(admitted bool) {
	if m == nil {
		return
	}
	m.ProposalsBuilt.Inc()
	if admitted {
		m.TradesAdmitted.Inc()
	} else {
		m.TradesSkipped.Inc()
	}
}

// RecordEventError counts one skipped trade event.
func (m *Metrics) RecordEventError() {
	if m == nil {
		return
	}
	m.EventErrors.Inc()
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	if m == nil {
		return
	}
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
