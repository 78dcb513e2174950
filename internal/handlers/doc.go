// Package handlers provides the HTTP handlers of the clipstream intake
// service.
//
// It includes handlers for:
//   - Video upload, synchronous or queued
//   - Job status polling
//   - Reading published catalog entries
//   - Serving HLS manifests, segments and thumbnails
//   - Health checks and version information
package handlers
