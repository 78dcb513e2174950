/*
Package workers determines worker pool sizes in containerized environments.

Go 1.19+ sets GOMAXPROCS from the container CPU limit, while runtime.NumCPU
still reports the host. Sizing from GOMAXPROCS keeps the number of parallel
ffmpeg encodes proportional to the CPU the pod actually has:

	pool := pipeline.NewPool(coord, workers.ForPipeline(), cfg.PipelineQueue)

Set PIPELINE_WORKERS to pin the number of concurrent ingestion jobs.
*/
package workers
