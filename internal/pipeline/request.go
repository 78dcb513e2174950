package pipeline

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"clipstream/internal/layout"
	"clipstream/internal/logging"
)

// DefaultTitle replaces an empty title.
const DefaultTitle = "Untitled"

// UploadRequest is an accepted upload. RawPath is owned by the job from the
// moment the request is handed to the coordinator.
type UploadRequest struct {
	RawPath     string
	Title       string
	Description string
	UploaderID  string
}

// normalize trims and NFC-normalizes the text fields and defaults the title.
func (r UploadRequest) normalize() UploadRequest {
	r.Title = strings.TrimSpace(norm.NFC.String(r.Title))
	r.Description = strings.TrimSpace(norm.NFC.String(r.Description))
	if r.Title == "" {
		r.Title = DefaultTitle
	}
	return r
}

// Status is the lifecycle state of a job.
type Status string

// Job states.
const (
	StatusReceived   Status = "received"
	StatusProbing    Status = "probing"
	StatusEncoding   Status = "encoding"
	StatusPublishing Status = "publishing"
	StatusDone       Status = "done"
	StatusFailed     Status = "failed"
)

// Job is one run of the pipeline. It is owned by a single coordinator call.
type Job struct {
	ID       string
	Request  UploadRequest
	Paths    layout.Paths
	Accepted time.Time

	status Status
	log    *logging.JobLogger
}

// Status returns the current state.
func (j *Job) Status() Status {
	return j.status
}
