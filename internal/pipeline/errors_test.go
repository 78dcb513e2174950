package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"clipstream/internal/database"
	"clipstream/internal/transcoder"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		stage string
		kind  Kind
		err   error
		want  Kind
	}{
		{"plain probe error", StageProbe, KindProbeFailed, errors.New("bad"), KindProbeFailed},
		{"probe deadline", StageProbe, KindProbeFailed, fmt.Errorf("ffprobe: %w", context.DeadlineExceeded), KindTimeout},
		{"encode canceled", StageEncode, KindEncodeFailed, fmt.Errorf("ffmpeg: %w", context.Canceled), KindCanceled},
		{"shutting down", StageThumbnail, KindThumbnailFailed, transcoder.ErrShuttingDown, KindCanceled},
		{"killed at shutdown", StageEncode, KindEncodeFailed, fmt.Errorf("ffmpeg_hls killed after 2s: %w", transcoder.ErrShuttingDown), KindCanceled},
		{"process error", StageEncode, KindEncodeFailed, &transcoder.ProcessError{Tool: "ffmpeg_hls", Err: errors.New("exit status 1")}, KindEncodeFailed},
		{"already classified", StagePublish, KindPublishFailed, &Error{Kind: KindInvalidInput, Stage: StageProbe}, KindInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.stage, tt.kind, tt.err)
			if got.Kind != tt.want {
				t.Errorf("classify() kind = %s, want %s", got.Kind, tt.want)
			}
			if !errors.Is(got, tt.err) && KindOf(tt.err) == "" {
				t.Error("classify() should wrap the original error")
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("upload: %w", &Error{Kind: KindPublishFailed, Stage: StagePublish, Err: database.ErrDuplicateID})

	if KindOf(wrapped) != KindPublishFailed {
		t.Errorf("KindOf() = %q, want publish_failed", KindOf(wrapped))
	}
	if !errors.Is(wrapped, database.ErrDuplicateID) {
		t.Error("Error should unwrap to the cause")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf() of a plain error should be empty")
	}
}

func TestKindMessages(t *testing.T) {
	kinds := []Kind{
		KindInvalidInput, KindProbeFailed, KindEncodeFailed, KindThumbnailFailed,
		KindPublishFailed, KindTimeout, KindCanceled,
	}
	seen := make(map[string]Kind)
	for _, k := range kinds {
		msg := k.Message()
		if msg == "" {
			t.Errorf("%s has no message", k)
		}
		if other, dup := seen[msg]; dup {
			t.Errorf("%s and %s share message %q", k, other, msg)
		}
		seen[msg] = k
	}
}

func TestErrorString(t *testing.T) {
	err := &Error{Kind: KindEncodeFailed, Stage: StageEncode, Err: errors.New("exit status 1")}
	if err.Error() != "encode: encode_failed: exit status 1" {
		t.Errorf("Error() = %q", err.Error())
	}
}
