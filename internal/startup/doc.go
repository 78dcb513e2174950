// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [LoadConfig]. A .env
// file in the working directory is loaded first when present; variables
// already set in the environment win.
//
//   - PORT: HTTP server port (default: 4000)
//   - METRICS_PORT, METRICS_ENABLED: Prometheus listener (default: 9090, true)
//   - ASSETS_DIR: Asset root holding hls/ and thumbs/ (default: ./assets)
//   - UPLOAD_DIR: Spool directory for raw uploads (default: ./uploads)
//   - DATABASE_DIR: SQLite directory (default: ./data)
//   - CATALOG_DRIVER: sqlite or postgres (default: sqlite)
//   - DATABASE_URL: Postgres connection string, required for postgres
//   - REDIS_URL: Job status backend; in-memory when unset
//   - AMQP_URL, AMQP_EXCHANGE: Catalog event broker; disabled when unset
//   - JWT_SECRET: HMAC secret for uploader tokens (required)
//   - FFMPEG_PATH, FFPROBE_PATH: External tools (default: ffmpeg, ffprobe)
//   - PROBE_TIMEOUT, ENCODE_TIMEOUT, THUMBNAIL_TIMEOUT: Per-stage bounds
//   - MAX_UPLOAD_SIZE: Upload limit in bytes (default: 2 GiB)
//   - MAX_DURATION: Longest accepted video (default: 4h)
//   - PIPELINE_WORKERS, PIPELINE_QUEUE: Concurrent and pending jobs
//   - THUMBNAIL_ENGINE: imaging or vips (default: imaging)
//   - RECONCILE_ENABLED, RECONCILE_INTERVAL: Orphan cleanup (default: true, 1h)
//   - RECONCILE_GRACE: Minimum artifact age before cleanup; always raised
//     above the longest possible job
//   - STREAM_WRITE_TIMEOUT: Idle client cutoff for asset responses (default: 30s)
//   - MEMORY_LIMIT, MEMORY_RATIO: Container limit for GOMEMLIMIT
//   - LOG_LEVEL, LOG_STATIC_FILES, LOG_HEALTH_CHECKS: Logging
//
// Asset, upload and (for sqlite) database directories are created if missing
// and must be writable.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: Catalog initialization timing
//   - [LogToolsInit]: ffmpeg and ffprobe availability
//   - [LogPipelineInit]: Worker and queue sizes
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated], [LogShutdownStep], [LogShutdownComplete]
package startup
