package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(catalogDriver string) {
	for _, outcome := range []string{"done", "failed"} {
		PipelineJobsTotal.WithLabelValues(outcome)
	}

	for _, kind := range []string{"invalid_input", "probe_failed", "encode_failed",
		"thumbnail_failed", "publish_failed", "timeout", "canceled"} {
		PipelineFailuresTotal.WithLabelValues(kind)
	}

	for _, stage := range []string{"probe", "encode", "thumbnail", "publish", "cleanup"} {
		PipelineStageDuration.WithLabelValues(stage)
	}

	for _, artifact := range []string{"raw", "segments", "thumbnail"} {
		PipelineCleanupErrors.WithLabelValues(artifact)
	}

	for _, tool := range []string{"ffprobe", "ffmpeg_hls", "ffmpeg_frame"} {
		ProcessDuration.WithLabelValues(tool)
		for _, status := range []string{"success", "error", "timeout"} {
			ProcessRunsTotal.WithLabelValues(tool, status)
		}
	}

	for _, engine := range []string{"imaging", "vips"} {
		ThumbnailGenerationsTotal.WithLabelValues(engine, "success")
		ThumbnailGenerationsTotal.WithLabelValues(engine, "error")
	}
	for _, phase := range []string{"extract", "resize", "write"} {
		ThumbnailPhaseDuration.WithLabelValues(phase)
	}

	for _, v := range []string{"public", "hidden"} {
		CatalogVideosTotal.WithLabelValues(v)
	}

	for _, op := range []string{"initialize_schema", "publish", "get", "list",
		"set_visibility", "update_description", "delete", "counts"} {
		DBQueryTotal.WithLabelValues(catalogDriver, op, "success")
		DBQueryTotal.WithLabelValues(catalogDriver, op, "error")
		DBQueryDuration.WithLabelValues(catalogDriver, op)
	}
	DBConnectionsOpen.WithLabelValues(catalogDriver)

	for _, typ := range []string{"video.published", "video.failed"} {
		EventsPublishedTotal.WithLabelValues(typ, "success")
		EventsPublishedTotal.WithLabelValues(typ, "error")
	}

	for _, status := range []string{"success", "error"} {
		ReconcileRunsTotal.WithLabelValues(status)
	}
	for _, artifact := range []string{"segments", "thumbnail", "raw"} {
		ReconcileRemovedTotal.WithLabelValues(artifact)
	}

	for _, typ := range []string{"manifest", "segment", "thumbnail", "other"} {
		AssetBytesServed.WithLabelValues(typ)
	}
	for _, reason := range []string{"write_timeout", "client_gone", "write_error"} {
		AssetStreamAborts.WithLabelValues(reason)
	}

	volumes := []string{"uploads", "assets", "database", "unknown"}
	for _, op := range []string{"stat", "open", "rename", "remove", "readdir"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
