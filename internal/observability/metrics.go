package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake"

// Metrics holds the Prometheus counters, histograms, and gauges for the ingestion pipeline.
type Metrics struct {
	FetchesTotal      *prometheus.CounterVec // labels: source, status={success,error}
	RecordsNormalized *prometheus.CounterVec // labels: source
	NormalizeErrors   *prometheus.CounterVec // labels: source
	UpsertsTotal      prometheus.Counter
	PublishErrors     prometheus.Counter

	CycleDuration   prometheus.Histogram
	CyclesInFlight  prometheus.Gauge
	PipelineRunning prometheus.Gauge

	SnapshotsTotal *prometheus.CounterVec // labels: status={success,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchesTotal,
		m.RecordsNormalized,
		m.NormalizeErrors,
		m.UpsertsTotal,
		m.PublishErrors,
		m.CycleDuration,
		m.CyclesInFlight,
		m.PipelineRunning,
		m.SnapshotsTotal,
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
		FetchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Upstream feed fetches by source and outcome.",
		}, []string{"source", "status"}),
		RecordsNormalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_normalized_total",
			Help:      "Bulletins normalized into earthquakes, by source.",
		}, []string{"source"}),
		NormalizeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalize_errors_total",
			Help:      "Bulletins rejected as malformed, by source.",
		}, []string{"source"}),
		UpsertsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upserts_total",
			Help:      "Earthquakes written to the store.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publications of upserted earthquakes.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a complete ingestion cycle across all sources.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		}),
		CyclesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cycles_in_flight",
			Help:      "Ingestion cycles currently running. Above 1 means ticks overlapped.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the scheduler is active, 0 when shut down.",
		}),
		SnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Store snapshot exports by outcome.",
		}, []string{"status"}),
	}
}
