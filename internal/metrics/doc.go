// Package metrics provides Prometheus instrumentation for the clipstream
// ingestion service.
//
// All metrics are prefixed with "clipstream_" and registered with the default
// registry through promauto. They are exposed on the dedicated metrics port.
//
// # Metric Categories
//
// ## HTTP Metrics
//   - HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight
//   - HTTPUploadBytes: bytes accepted by the upload endpoint
//
// ## Pipeline Metrics
//
// Track ingestion jobs from upload to publication:
//   - PipelineJobsTotal: jobs by outcome (done/failed)
//   - PipelineFailuresTotal: failed jobs by error kind
//   - PipelineJobDuration, PipelineStageDuration
//   - PipelineJobsInProgress, PipelineQueueDepth, PipelineQueueRejected
//   - PipelineCleanupErrors: artifacts that could not be removed
//
// ## Process Metrics
//   - ProcessRunsTotal, ProcessDuration: ffprobe and ffmpeg invocations
//   - ProcessesRunning: encoder processes currently alive
//
// ## Thumbnail, Catalog and Event Metrics
//   - ThumbnailGenerationsTotal, ThumbnailPhaseDuration, ThumbnailSeekFallbacks
//   - CatalogVideosTotal: refreshed periodically by the Collector
//   - EventsPublishedTotal, JobStatusWritesTotal
//
// ## Reconciler, Asset and Memory Metrics
//   - ReconcileRunsTotal, ReconcileRemovedTotal, ReconcileDuration
//   - AssetBytesServed, AssetStreamAborts
//   - MemoryUsageRatio, MemoryPaused, MemoryGCPauses
//
// ## Filesystem Metrics
//
// Retry metrics for NFS-backed volumes are recorded through the observer
// returned by NewFilesystemObserver, which is registered with
// filesystem.SetObserver at startup.
//
// # Initialization
//
// InitializeMetrics pre-populates label combinations so every series is
// exported from the first scrape:
//
//	metrics.InitializeMetrics(cfg.CatalogDriver)
//	metrics.SetAppInfo(startup.Version, startup.Commit, runtime.Version())
package metrics
