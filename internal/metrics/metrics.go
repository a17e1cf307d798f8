package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion
	AudioUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_uploads_total",
			Help: "Total number of upload attempts",
		},
		[]string{"outcome"},
	)

	AudioUploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audio_upload_size_bytes",
			Help:    "Size of accepted uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 10), // 64KB to ~16GB
		},
	)

	// Orchestrator
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_pipeline_events_total",
			Help: "Pipeline events processed by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	StatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_status_transitions_total",
			Help: "Status transitions applied to audio items",
		},
		[]string{"to"},
	)

	// Worker
	EncodingJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_encoding_jobs_total",
			Help: "Encoding jobs finished, by outcome",
		},
		[]string{"outcome"},
	)

	EncodingJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audio_encoding_job_duration_seconds",
			Help:    "Wall-clock duration of encoding jobs",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
	)

	EncodingJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audio_encoding_jobs_in_progress",
			Help: "Number of encoding jobs currently running",
		},
	)

	SegmentsUploadedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audio_segments_uploaded_total",
			Help: "Processed output files uploaded to the processed bucket",
		},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audio_queue_depth",
			Help: "Messages waiting per topic queue",
		},
		[]string{"topic"},
	)

	// Read API
	StatusLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_status_lookups_total",
			Help: "Status lookups by result",
		},
		[]string{"result"},
	)

	StatusCacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audio_status_cache_total",
			Help: "Status view cache hits and misses",
		},
		[]string{"result"},
	)
)
