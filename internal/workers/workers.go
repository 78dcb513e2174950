package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv names the environment variable that fixes the pipeline
// worker count regardless of available CPUs.
const OverrideEnv = "PIPELINE_WORKERS"

// DefaultPipelineLimit caps concurrent ingestion jobs when no override is set.
// Each job runs its own multi-threaded ffmpeg encode.
const DefaultPipelineLimit = 4

// Count returns the number of workers for a given task type.
// It respects container CPU limits via GOMAXPROCS (Go 1.19+).
//
// The multiplier adjusts for task characteristics (1.0 for CPU-bound work).
// The limit parameter caps the worker count; use 0 for no limit.
//
// Can be overridden with the PIPELINE_WORKERS environment variable.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			if limit > 0 && count > limit {
				return limit
			}
			return count
		}
	}

	available := runtime.GOMAXPROCS(0)

	workers := int(float64(available) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForPipeline returns the number of concurrent ingestion jobs. An explicit
// PIPELINE_WORKERS value is honoured as-is; otherwise one job per CPU up to
// DefaultPipelineLimit.
func ForPipeline() int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return count
		}
	}
	return Count(1.0, DefaultPipelineLimit)
}
