package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "cpi_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL run.
type Metrics struct {
	SeriesIDsGenerated prometheus.Gauge
	BatchesPlanned     prometheus.Gauge
	Batches            *prometheus.CounterVec // labels: outcome={loaded,skipped,failed}
	Observations       prometheus.Counter
	RecordsWritten     prometheus.Counter
	UnmatchedJoins     *prometheus.CounterVec // labels: side={area,item}
	PipelineRunning    prometheus.Gauge

	// BLS API metrics.
	APIRequestDuration prometheus.Histogram
	APIRetries         prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.SeriesIDsGenerated,
		m.BatchesPlanned,
		m.Batches,
		m.Observations,
		m.RecordsWritten,
		m.UnmatchedJoins,
		m.PipelineRunning,
		m.APIRequestDuration,
		m.APIRetries,
	)

	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SeriesIDsGenerated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_ids_generated",
			Help:      "Size of the area x item cross product for the current run.",
		}),
		BatchesPlanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batches_planned",
			Help:      "API requests the current run will issue.",
		}),
		Batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Processed batches by outcome.",
		}, []string{"outcome"}),
		Observations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Observations parsed from API responses.",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Enriched records appended to the output.",
		}),
		UnmatchedJoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmatched_joins_total",
			Help:      "Observations whose area or item code had no catalog entry.",
		}, []string{"side"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a run is in progress, 0 otherwise.",
		}),
		APIRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "BLS API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		APIRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "BLS API requests retried after a transient failure.",
		}),
	}
}
