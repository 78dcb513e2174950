/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

# Purpose

Uploads, HLS output and thumbnails frequently live on network storage. This package
wraps the operations the ingestion pipeline performs on those volumes (os.Stat,
os.Open, os.Rename, os.RemoveAll) with retry logic for ESTALE (stale file handle)
errors that occur when NFS-mounted files are accessed during server-side changes.

# Usage

	info, err := filesystem.StatWithRetry(segmentPath, filesystem.DefaultRetryConfig())

	// Cleanup of a partial job; a missing path is not an error.
	err := filesystem.RemoveAllWithRetry(jobDir, filesystem.DefaultRetryConfig())

# Retry Behavior

The retry logic implements exponential backoff with the following defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only ESTALE triggers retries. All other errors fail immediately.

# Metrics

Metrics are reported through an Observer registered with SetObserver. The metrics
package provides the Prometheus implementation; without one, recording is skipped.
Volume labels come from a VolumeResolver ("uploads", "assets", "database").
*/
package filesystem
