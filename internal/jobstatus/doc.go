// Package jobstatus records the progress of ingestion jobs so that
// asynchronous uploads can be polled.
//
// MemoryTracker keeps records in process and expires them after a TTL.
// RedisTracker stores one hash per job (key "clipstream:job:<id>") with a
// 24 hour expiry, so several intake instances can share status.
package jobstatus
