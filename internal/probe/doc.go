// Package probe extracts duration and basic stream metadata from a raw upload
// by running ffprobe.
//
// Probe never modifies the input and is bounded by a timeout. Duration is
// total: a missing or unparseable value is reported as zero, never as an
// error or a negative number. A file with no video stream is rejected.
package probe
