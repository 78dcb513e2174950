// Package pipeline turns an uploaded file into a published catalog entry.
//
// A Coordinator runs one job through
//
//	received -> probing -> encoding (segments and thumbnail together) -> publishing -> done
//
// and moves it to failed from any earlier state. A failed job leaves nothing
// behind: its segment directory, thumbnail and raw upload are removed, and
// no catalog entry is written. A job is never retried.
//
// Pool bounds how many jobs run at once and how many may wait.
package pipeline
