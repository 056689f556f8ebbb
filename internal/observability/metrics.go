package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crop_yield"

// Metrics holds the Prometheus collectors for report generation.
type Metrics struct {
	// Upload metrics.
	Uploads          *prometheus.CounterVec // labels: outcome={ok,<error kind>}
	RecordsLoaded    prometheus.Counter
	RecordsByLabel   *prometheus.CounterVec // labels: category={Good,Moderate,Bad}
	InvalidRows      *prometheus.CounterVec // labels: policy={skip,null}
	PipelineDuration prometheus.Histogram

	// Report cache metrics.
	ReportCache *prometheus.CounterVec // labels: result={hit,miss,evicted}

	// Report event metrics.
	EventsPublished prometheus.Counter
	EventsFailed    prometheus.Counter
	EventsEnabled   prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		Uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Uploads processed, by outcome.",
		}, []string{"outcome"}),
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_loaded_total",
			Help:      "Rows parsed from uploaded files.",
		}),
		RecordsByLabel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_classified_total",
			Help:      "Records classified, by crop-yield category.",
		}, []string{"category"}),
		InvalidRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_rows_total",
			Help:      "Rows the invalid-row policy skipped or left unclassified.",
		}, []string{"policy"}),
		PipelineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of a complete load-classify-render run.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ReportCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_cache_total",
			Help:      "Report cache lookups by result, and evictions.",
		}, []string{"result"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_events_published_total",
			Help:      "Report summaries written to Kafka.",
		}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_events_failed_total",
			Help:      "Report summaries that could not be written.",
		}),
		EventsEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "report_events_enabled",
			Help:      "1 when report events are published, 0 otherwise.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Uploads,
		m.RecordsLoaded,
		m.RecordsByLabel,
		m.InvalidRows,
		m.PipelineDuration,
		m.ReportCache,
		m.EventsPublished,
		m.EventsFailed,
		m.EventsEnabled,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsWithRegistry creates Metrics registered on reg. One-shot tools
// pass a fresh prometheus.NewRegistry() that is never scraped.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered on a private registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}
