// Package memory keeps the server inside its container memory limit.
//
// [ConfigureFromEnv] sets the runtime soft limit (GOMEMLIMIT) from the
// container limit, leaving headroom for ffmpeg children and libvips, which
// allocate outside the Go heap:
//
//	env:
//	- name: MEMORY_LIMIT
//	  valueFrom:
//	    resourceFieldRef:
//	      resource: limits.memory
//	- name: MEMORY_RATIO
//	  value: "0.75"
//
// A [Monitor] samples heap usage against that limit. Once usage crosses the
// critical watermark the monitor pauses: the upload handler answers 503 with
// Retry-After and the reconciler skips its passes. It resumes when usage
// falls below the high watermark.
//
// The state is exported as clipstream_memory_usage_ratio and
// clipstream_memory_paused.
package memory
