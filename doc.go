// Clipstream ingests uploaded videos and publishes them as HLS renditions
// with a thumbnail and a catalog entry.
//
// # Application Lifecycle
//
//  1. Memory: GOMEMLIMIT from MEMORY_LIMIT before anything else allocates
//  2. Configuration: environment variables and an optional .env file
//  3. Catalog: SQLite by default, Postgres when CATALOG_DRIVER=postgres
//  4. Backends: job status tracker (memory or Redis) and event publisher
//     (disabled or AMQP)
//  5. Pipeline: prober, HLS segmenter and thumbnailer behind a bounded
//     worker pool
//  6. Background: memory monitor (refuses uploads when critical) and the
//     orphan reconciler
//  7. HTTP: public catalog and asset routes, token-protected upload and job
//     status routes, and a separate Prometheus listener
//  8. Graceful shutdown on SIGINT/SIGTERM: stop accepting requests, cancel
//     running jobs (each removes its partial output), kill leftover encoder
//     processes, close backends
//
// # Routes
//
//	POST /api/videos/upload     multipart upload (file, title, description); ?async=1 returns 202
//	GET  /api/jobs/{id}         job status
//	GET  /api/videos            public entries, newest first
//	GET  /api/videos/{id}       one public entry
//	GET  /static/{path}         manifests, segments and thumbnails
//	GET  /health /livez /readyz /version
package main
