// Package reconcile removes artifacts that no job owns any more.
//
// A job deletes its own partial output on every failure path, but a process
// that is killed mid-job cannot. The Reconciler walks the asset root and the
// upload directory and removes anything older than a grace period that has
// no catalog entry:
//
//   - hls/<id>/ segment directories
//   - thumbs/<id>.jpg thumbnails and interrupted thumbnail temp files
//   - raw uploads left in the upload directory
//
// Artifacts of queued and running jobs are skipped, and the grace period
// covers uploads still being received. Catalog entries are never modified.
package reconcile
