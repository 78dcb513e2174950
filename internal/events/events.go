package events

import (
	"context"
	"time"

	"clipstream/internal/database"
)

// Event types.
const (
	TypePublished = "video.published"
	TypeFailed    = "video.failed"
)

// Event is the message body.
type Event struct {
	Type       string          `json:"type"`
	JobID      string          `json:"jobId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Entry      *database.Entry `json:"entry,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	Stage      string          `json:"stage,omitempty"`
}

// Published builds a video.published event for entry.
func Published(entry *database.Entry) Event {
	return Event{
		Type:       TypePublished,
		JobID:      entry.ID,
		OccurredAt: time.Now().UTC(),
		Entry:      entry,
	}
}

// Failed builds a video.failed event.
func Failed(jobID, kind, stage string) Event {
	return Event{
		Type:       TypeFailed,
		JobID:      jobID,
		OccurredAt: time.Now().UTC(),
		Kind:       kind,
		Stage:      stage,
	}
}

// Publisher sends events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

// Publish does nothing.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Noop) Close() error { return nil }
