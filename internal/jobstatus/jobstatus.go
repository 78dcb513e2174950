package jobstatus

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for unknown or expired jobs.
var ErrNotFound = errors.New("job not found")

// DefaultTTL is how long a record is kept after its last update.
const DefaultTTL = 24 * time.Hour

// Record is the externally visible state of a job.
type Record struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Kind      string    `json:"kind,omitempty"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Terminal reports whether the job has finished.
func (r Record) Terminal() bool {
	return r.Status == "done" || r.Status == "failed"
}

// Tracker stores job records.
type Tracker interface {
	Set(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	Close() error
}
