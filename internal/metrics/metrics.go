package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipstream_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 30, 120, 600, 1800},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clipstream_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	HTTPUploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipstream_http_upload_bytes_total",
			Help: "Total bytes of raw video accepted by the upload endpoint",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_db_queries_total",
			Help: "Total number of catalog queries",
		},
		[]string{"driver", "operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipstream_db_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"driver", "operation"},
	)

	DBConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clipstream_db_connections_open",
			Help: "Number of open catalog connections",
		},
		[]string{"driver"},
	)
)

// Pipeline metrics
var (
	PipelineJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_pipeline_jobs_total",
			Help: "Total number of ingestion jobs by outcome",
		},
		[]string{"outcome"}, // "done", "failed"
	)

	PipelineFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_pipeline_failures_total",
			Help: "Total number of failed ingestion jobs by error kind",
		},
		[]string{"kind"},
	)

	PipelineJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clipstream_pipeline_job_duration_seconds",
			Help:    "End-to-end ingestion job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, 7200},
		},
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipstream_pipeline_stage_duration_seconds",
			Help:    "Duration of each ingestion stage in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 1800, 7200},
		},
		[]string{"stage"},
	)

	PipelineJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clipstream_pipeline_jobs_in_progress",
			Help: "Number of ingestion jobs currently running",
		},
	)

	PipelineQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clipstream_pipeline_queue_depth",
			Help: "Number of asynchronous jobs waiting for a worker",
		},
	)

	PipelineQueueRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipstream_pipeline_queue_rejected_total",
			Help: "Total number of asynchronous jobs rejected because the queue was full",
		},
	)

	PipelineCleanupErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_pipeline_cleanup_errors_total",
			Help: "Total number of artifacts that could not be removed",
		},
		[]string{"artifact"}, // "raw", "segments", "thumbnail"
	)
)

// External process metrics
var (
	ProcessRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_process_runs_total",
			Help: "Total number of ffmpeg/ffprobe invocations",
		},
		[]string{"tool", "status"}, // status: "success", "error", "timeout"
	)

	ProcessDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipstream_process_duration_seconds",
			Help:    "ffmpeg/ffprobe wall clock time in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300, 1800, 7200},
		},
		[]string{"tool"},
	)

	ProcessesRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clipstream_processes_running",
			Help: "Number of encoder processes currently running",
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_thumbnail_generations_total",
			Help: "Total number of thumbnail generations",
		},
		[]string{"engine", "status"},
	)

	ThumbnailPhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipstream_thumbnail_phase_duration_seconds",
			Help:    "Thumbnail generation phase duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"phase"}, // "extract", "resize", "write"
	)

	ThumbnailSeekFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipstream_thumbnail_seek_fallbacks_total",
			Help: "Total number of frame extractions retried from the start of the video",
		},
	)
)

// Catalog metrics
var (
	CatalogVideosTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clipstream_catalog_videos",
			Help: "Number of catalog entries by visibility",
		},
		[]string{"visibility"}, // "public", "hidden"
	)
)

// Event metrics
var (
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_events_published_total",
			Help: "Total number of catalog events published",
		},
		[]string{"type", "status"},
	)

	JobStatusWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_jobstatus_writes_total",
			Help: "Total number of job status writes",
		},
		[]string{"backend", "status"},
	)
)

// Filesystem retry metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retries after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retrying",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that exhausted their retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_filesystem_stale_errors_total",
			Help: "Total number of ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clipstream_filesystem_retry_duration_seconds",
			Help:    "Duration of filesystem operations including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Reconciler metrics
var (
	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_reconcile_runs_total",
			Help: "Total number of asset reconciliation passes",
		},
		[]string{"status"},
	)

	ReconcileRemovedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_reconcile_removed_total",
			Help: "Total number of orphaned artifacts removed by reconciliation",
		},
		[]string{"artifact"},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clipstream_reconcile_duration_seconds",
			Help:    "Duration of asset reconciliation passes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		},
	)
)

// Asset delivery metrics
var (
	AssetBytesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_asset_bytes_served_total",
			Help: "Total bytes of manifests, segments and thumbnails served",
		},
		[]string{"type"},
	)

	AssetStreamAborts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstream_asset_stream_aborts_total",
			Help: "Total number of asset responses abandoned before completion",
		},
		[]string{"reason"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clipstream_memory_usage_ratio",
			Help: "Go heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clipstream_memory_paused",
			Help: "1 while new uploads are refused because memory is critical",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clipstream_memory_gc_pauses_total",
			Help: "Total number of times memory pressure paused intake",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clipstream_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
