// Package metrics holds the Prometheus instruments of an ingestion run.
//
// Metrics live in their own registry so a run can be written to a
// node-exporter textfile without the Go runtime collectors.
//
//   - repo_ingest_chunks_extracted_total{source}
//   - repo_ingest_chunks_embedded_total{source}
//   - repo_ingest_vectors_upserted_total{namespace}
//   - repo_ingest_metadata_truncations_total
//   - repo_ingest_urls_scraped_total{result}
//   - repo_ingest_validation_success_rate{repository}
//   - repo_ingest_stage_duration_seconds{stage}
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "repo_ingest"

// Metrics holds Prometheus metrics for the ingestion pipeline
type Metrics struct {
	registry *prometheus.Registry

	ChunksExtracted  *prometheus.CounterVec
	ChunksEmbedded   *prometheus.CounterVec
	VectorsUpserted  *prometheus.CounterVec
	Truncations      prometheus.Counter
	URLsScraped      *prometheus.CounterVec
	ValidationRate   *prometheus.GaugeVec
	StageDuration    *prometheus.HistogramVec
	RunsTotal        *prometheus.CounterVec
	LastRunTimestamp prometheus.Gauge
}

// New creates metrics registered on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ChunksExtracted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_extracted_total",
			Help:      "Chunks produced by repomix, scraping and deep research",
		}, []string{"source"}),
		ChunksEmbedded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_embedded_total",
			Help:      "Chunks turned into embeddings",
		}, []string{"source"}),
		VectorsUpserted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vectors_upserted_total",
			Help:      "Vectors written to the index",
		}, []string{"namespace"}),
		Truncations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metadata_truncations_total",
			Help:      "Vectors whose text metadata was truncated to fit the size limit",
		}),
		URLsScraped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_scraped_total",
			Help:      "URLs scraped, by result",
		}, []string{"result"}),
		ValidationRate: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "validation_success_rate",
			Help:      "Share of sampled file paths found in the index",
		}, []string{"repository"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"stage"}),
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs, by outcome",
		}, []string{"outcome"}),
		LastRunTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
}

// ObserveStage records the time since start for stage
func (m *Metrics) ObserveStage(stage string, start time.Time) {
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// URLResult counts one scrape outcome
func (m *Metrics) URLResult(err error) {
	if err != nil {
		m.URLsScraped.WithLabelValues("failed").Inc()
		return
	}
	m.URLsScraped.WithLabelValues("ok").Inc()
}

// RunFinished records the outcome and completion time of a run
func (m *Metrics) RunFinished(err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.LastRunTimestamp.SetToCurrentTime()
}

// Registry exposes the registry for gathering
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics in the text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
