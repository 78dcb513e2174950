// Package transcoder runs the external ffmpeg tools for the ingestion pipeline.
//
// It provides:
//   - Run, a tracked process runner shared by the prober and thumbnailer
//   - Segment, which encodes an upload into a single-rendition HLS stream
//     (H.264 baseline 3.0 + AAC, 6 second segments, VOD playlist)
//   - ReadManifest, which verifies that every segment a playlist references exists
//   - Cleanup, which kills every running child process on shutdown
//
// FFmpeg must be installed; its location is configurable through Options.
package transcoder
