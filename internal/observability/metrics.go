package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the drought pipelines.
type Metrics struct {
	PipelineRunning prometheus.Gauge
	LastRunSuccess  prometheus.Gauge

	// Stage metrics.
	MonthsFetched   *prometheus.CounterVec   // labels: variable
	MonthsSkipped   *prometheus.CounterVec   // labels: variable, stage
	StageDuration   *prometheus.HistogramVec // labels: variable, stage
	IndicesComputed *prometheus.CounterVec   // labels: variable
	Exports         *prometheus.CounterVec   // labels: exporter, outcome={success,error}
	ZonalStats      prometheus.Counter

	// Archive source metrics.
	ArchiveRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	ArchiveCache       *prometheus.CounterVec // labels: result={hit,miss}
	ArchiveAPIDuration prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.PipelineRunning,
		m.LastRunSuccess,
		m.MonthsFetched,
		m.MonthsSkipped,
		m.StageDuration,
		m.IndicesComputed,
		m.Exports,
		m.ZonalStats,
		m.ArchiveRequests,
		m.ArchiveCache,
		m.ArchiveAPIDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drought_etl",
			Name:      "pipeline_running",
			Help:      help("1 while a pipeline run is active, 0 otherwise."),
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drought_etl",
			Name:      "last_run_success_timestamp_seconds",
			Help:      help("Unix time of the last successful pipeline run."),
		}),
		MonthsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought_etl",
			Name:      "months_fetched_total",
			Help:      help("Monthly rasters aggregated from the raster source."),
		}, []string{"variable"}),
		MonthsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought_etl",
			Name:      "months_skipped_total",
			Help:      help("Months skipped for missing data, by stage."),
		}, []string{"variable", "stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "drought_etl",
			Name:      "stage_duration_seconds",
			Help:      help("Duration of each pipeline stage."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"variable", "stage"}),
		IndicesComputed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought_etl",
			Name:      "indices_computed_total",
			Help:      help("Drought index rasters composed."),
		}, []string{"variable"}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought_etl",
			Name:      "exports_total",
			Help:      help("Raster exports by exporter and outcome."),
		}, []string{"exporter", "outcome"}),
		ZonalStats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drought_etl",
			Name:      "zonal_stats_written_total",
			Help:      help("Zonal statistic rows written to the stats store."),
		}),
		ArchiveRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought_etl",
			Name:      "archive_requests_total",
			Help:      help("Raster archive requests by outcome."),
		}, []string{"outcome"}),
		ArchiveCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drought_etl",
			Name:      "archive_cache_total",
			Help:      help("Raster archive cache lookups by result."),
		}, []string{"result"}),
		ArchiveAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "drought_etl",
			Name:      "archive_api_duration_seconds",
			Help:      help("Raster archive request duration in seconds."),
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
	}
}
