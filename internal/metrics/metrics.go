// Package metrics holds the Prometheus collectors shared by the ingest and
// query paths. Collectors register with the default registry on import.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueryOutcomes counts finished queries by terminal outcome.
	QueryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policyrag_query_outcomes_total",
		Help: "Total queries by outcome",
	}, []string{"outcome"})

	// StageDuration tracks latency of each query stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "policyrag_query_stage_duration_seconds",
		Help:    "Query stage duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~30s
	}, []string{"stage"})

	// ValidatorRejections counts refusals by the validator check that failed.
	ValidatorRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "policyrag_validator_rejections_total",
		Help: "Total answers rejected by validator check",
	}, []string{"check"})

	// TopScore tracks the relevance of the best retrieved chunk.
	TopScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "policyrag_retrieval_top_score",
		Help:    "Cosine score of the top retrieved chunk",
		Buckets: prometheus.LinearBuckets(-0.2, 0.1, 13),
	})

	// IngestDocuments counts documents loaded by ingestion runs.
	IngestDocuments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyrag_ingest_documents_total",
		Help: "Total documents loaded during ingestion",
	})

	// IngestChunks counts chunks written by ingestion runs.
	IngestChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyrag_ingest_chunks_total",
		Help: "Total chunks upserted during ingestion",
	})

	// IngestFailures counts files skipped during ingestion.
	IngestFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "policyrag_ingest_failed_files_total",
		Help: "Total files skipped because they failed to load",
	})

	// IngestDuration tracks the wall time of whole ingestion runs.
	IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "policyrag_ingest_duration_seconds",
		Help:    "Ingestion run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27m
	}, []string{"status"})
)

// ObserveStage records how long a stage took since start.
func ObserveStage(stage string, start time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
