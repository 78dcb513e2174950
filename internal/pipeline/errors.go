package pipeline

import (
	"context"
	"errors"
	"fmt"

	"clipstream/internal/transcoder"
)

// Kind classifies why a job failed.
type Kind string

// Failure kinds. The values are used as metric labels and in job records.
const (
	KindInvalidInput    Kind = "invalid_input"
	KindProbeFailed     Kind = "probe_failed"
	KindEncodeFailed    Kind = "encode_failed"
	KindThumbnailFailed Kind = "thumbnail_failed"
	KindPublishFailed   Kind = "publish_failed"
	KindTimeout         Kind = "timeout"
	KindCanceled        Kind = "canceled"
)

// Stages of a job.
const (
	StageIntake    = "intake"
	StageProbe     = "probe"
	StageEncode    = "encode"
	StageThumbnail = "thumbnail"
	StagePublish   = "publish"
)

// Message is the user-facing text for the kind. Stage detail stays in the
// logs.
func (k Kind) Message() string {
	switch k {
	case KindInvalidInput:
		return "The upload was not accepted"
	case KindProbeFailed:
		return "The file could not be read as a video"
	case KindEncodeFailed:
		return "The video could not be converted for streaming"
	case KindThumbnailFailed:
		return "A preview image could not be created for the video"
	case KindPublishFailed:
		return "The video could not be added to the catalog"
	case KindTimeout:
		return "Processing the video took too long"
	case KindCanceled:
		return "Processing was canceled"
	default:
		return "The video could not be processed"
	}
}

// Error is a failed job. JobID is empty when the request was rejected
// before an identifier was allocated.
type Error struct {
	JobID string
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or "" if err is not a pipeline error.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return ""
}

// invalidInput builds an InvalidInput error for stage.
func invalidInput(stage, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// classify wraps err from stage. A deadline is always a Timeout and a
// cancellation or shutdown is always Canceled, whatever stage they hit;
// anything else is the stage's own kind.
func classify(stage string, kind Kind, err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled), errors.Is(err, transcoder.ErrShuttingDown):
		kind = KindCanceled
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}
