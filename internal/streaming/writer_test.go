package streaming

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"clipstream/internal/metrics"
)

// deadlineWriter records writes and deadlines like a server connection.
type deadlineWriter struct {
	header    http.Header
	body      bytes.Buffer
	writes    []int
	deadlines []time.Time
	failAfter int
	failWith  error
}

func newDeadlineWriter() *deadlineWriter {
	return &deadlineWriter{header: http.Header{}, failAfter: -1}
}

func (d *deadlineWriter) Header() http.Header { return d.header }
func (d *deadlineWriter) WriteHeader(int)     {}

func (d *deadlineWriter) Write(p []byte) (int, error) {
	if d.failAfter >= 0 && len(d.writes) >= d.failAfter {
		return 0, d.failWith
	}
	d.writes = append(d.writes, len(p))
	return d.body.Write(p)
}

func (d *deadlineWriter) SetWriteDeadline(t time.Time) error {
	d.deadlines = append(d.deadlines, t)
	return nil
}

func TestWriterChunksUnderDeadlines(t *testing.T) {
	dw := newDeadlineWriter()
	w := NewWriter(context.Background(), dw, Config{WriteTimeout: time.Second, ChunkSize: 4})

	payload := []byte("0123456789")
	n, err := w.Write(payload)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len(payload) {
		t.Errorf("Write() = %d, want %d", n, len(payload))
	}
	if got := fmt.Sprint(dw.writes); got != "[4 4 2]" {
		t.Errorf("chunks = %s, want [4 4 2]", got)
	}
	if len(dw.deadlines) != 3 {
		t.Fatalf("deadlines set = %d, want 3", len(dw.deadlines))
	}
	for _, d := range dw.deadlines {
		if d.IsZero() || d.Before(time.Now().Add(-time.Minute)) {
			t.Errorf("unexpected deadline %v", d)
		}
	}
	if dw.body.String() != string(payload) {
		t.Errorf("body = %q", dw.body.String())
	}
	if w.Written() != int64(len(payload)) {
		t.Errorf("Written() = %d", w.Written())
	}

	w.Finish("segment")
	if last := dw.deadlines[len(dw.deadlines)-1]; !last.IsZero() {
		t.Errorf("Finish left deadline %v, want cleared", last)
	}
}

func TestWriterErrors(t *testing.T) {
	tests := []struct {
		name       string
		failWith   error
		cancel     bool
		wantErr    error
		wantReason string
	}{
		{
			name:       "stalled client",
			failWith:   &os.PathError{Op: "write", Path: "tcp", Err: os.ErrDeadlineExceeded},
			wantErr:    ErrWriteTimeout,
			wantReason: "write_timeout",
		},
		{
			name:       "context canceled",
			cancel:     true,
			wantErr:    ErrClientGone,
			wantReason: "client_gone",
		},
		{
			name:       "broken pipe",
			failWith:   errors.New("broken pipe"),
			wantReason: "write_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancel {
				cancel()
			}

			dw := newDeadlineWriter()
			if tt.failWith != nil {
				dw.failAfter = 1
				dw.failWith = tt.failWith
			}
			w := NewWriter(ctx, dw, Config{WriteTimeout: time.Second, ChunkSize: 2})

			_, err := w.Write([]byte("abcdef"))
			if err == nil {
				t.Fatal("Write() error = nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Write() error = %v, want %v", err, tt.wantErr)
			}
			if got := AbortReason(err); got != tt.wantReason {
				t.Errorf("AbortReason() = %q, want %q", got, tt.wantReason)
			}

			// The writer stays failed.
			if _, again := w.Write([]byte("x")); again != err {
				t.Errorf("second Write() error = %v, want %v", again, err)
			}
			if w.Err() != err {
				t.Errorf("Err() = %v, want %v", w.Err(), err)
			}

			before := testutil.ToFloat64(metrics.AssetStreamAborts.WithLabelValues(tt.wantReason))
			w.Finish("segment")
			after := testutil.ToFloat64(metrics.AssetStreamAborts.WithLabelValues(tt.wantReason))
			if after != before+1 {
				t.Errorf("aborts{%s} = %v, want %v", tt.wantReason, after, before+1)
			}
		})
	}
}

func TestWriterWithoutDeadlineSupport(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewWriter(context.Background(), rec, DefaultConfig())

	payload := strings.Repeat("x", 200*1024)
	if _, err := w.Write([]byte(payload)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if rec.Body.Len() != len(payload) {
		t.Errorf("body length = %d, want %d", rec.Body.Len(), len(payload))
	}
	w.Finish("thumbnail")
}

func TestWriterWithServeContent(t *testing.T) {
	content := strings.Repeat("segment-data-", 1000)

	tests := []struct {
		name       string
		rangeHdr   string
		wantStatus int
		wantBody   string
	}{
		{"full body", "", http.StatusOK, content},
		{"range", "bytes=0-6", http.StatusPartialContent, "segment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/static/hls/x/seg_00000.ts", nil)
			if tt.rangeHdr != "" {
				req.Header.Set("Range", tt.rangeHdr)
			}
			rec := httptest.NewRecorder()

			counter := metrics.AssetBytesServed.WithLabelValues("segment")
			before := testutil.ToFloat64(counter)

			w := NewWriter(req.Context(), rec, Config{WriteTimeout: time.Second, ChunkSize: 1024})
			http.ServeContent(w, req, "seg_00000.ts", time.Now(), strings.NewReader(content))
			w.Finish("segment")

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body length = %d, want %d", rec.Body.Len(), len(tt.wantBody))
			}
			if got := testutil.ToFloat64(counter) - before; got != float64(len(tt.wantBody)) {
				t.Errorf("bytes served = %v, want %d", got, len(tt.wantBody))
			}
		})
	}
}
