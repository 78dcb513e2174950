// Package events announces catalog changes to other services.
//
// Two events are emitted by the ingestion pipeline:
//   - video.published: a catalog entry became durable
//   - video.failed: a job ended without publishing
//
// AMQPPublisher sends them as persistent JSON messages to a topic exchange
// with the event type as routing key. Noop is used when no broker is
// configured.
package events
