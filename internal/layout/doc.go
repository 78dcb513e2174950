// Package layout decides where the artifacts of an ingestion job live under
// the asset root.
//
//	<root>/hls/<id>/index.m3u8
//	<root>/hls/<id>/segment_00000.ts ...
//	<root>/thumbs/<id>.jpg
//
// Allocate draws a fresh UUIDv4 and claims its segment directory with an
// exclusive mkdir, so two jobs can never share a directory even if an
// identifier were ever drawn twice.
package layout
