package streaming

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"clipstream/internal/logging"
	"clipstream/internal/metrics"
)

var (
	// ErrWriteTimeout is returned when the client did not accept a chunk
	// within the write timeout.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone is returned once the request context has ended.
	ErrClientGone = errors.New("client disconnected")
)

// Config configures a Writer.
type Config struct {
	// WriteTimeout bounds each chunk. Zero disables deadlines.
	WriteTimeout time.Duration
	// ChunkSize splits large writes so every chunk gets a fresh deadline.
	ChunkSize int
}

// DefaultConfig returns the settings used for asset delivery.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// Writer is an http.ResponseWriter that drops clients which stop reading.
// Each chunk is written under its own connection write deadline, so a
// response of any length can complete as long as the client keeps up.
type Writer struct {
	http.ResponseWriter
	ctx    context.Context
	rc     *http.ResponseController
	config Config

	mu        sync.Mutex
	written   int64
	err       error
	deadlines bool
}

// NewWriter wraps w. ctx is normally the request context.
func NewWriter(ctx context.Context, w http.ResponseWriter, config Config) *Writer {
	return &Writer{
		ResponseWriter: w,
		ctx:            ctx,
		rc:             http.NewResponseController(w),
		config:         config,
		deadlines:      config.WriteTimeout > 0,
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *Writer) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Write implements io.Writer. After the first failure every call returns
// the same error.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return 0, w.err
	}

	total := 0
	for len(p) > 0 {
		if w.ctx.Err() != nil {
			w.err = ErrClientGone
			return total, w.err
		}

		chunk := p
		if w.config.ChunkSize > 0 && len(chunk) > w.config.ChunkSize {
			chunk = chunk[:w.config.ChunkSize]
		}

		w.armDeadline()
		n, err := w.ResponseWriter.Write(chunk)
		total += n
		w.written += int64(n)
		if err != nil {
			w.err = w.classify(err)
			return total, w.err
		}
		p = p[n:]
	}
	return total, nil
}

func (w *Writer) armDeadline() {
	if !w.deadlines {
		return
	}
	if err := w.rc.SetWriteDeadline(time.Now().Add(w.config.WriteTimeout)); err != nil {
		// Recorders and some wrappers have no connection to put a deadline on.
		w.deadlines = false
	}
}

func (w *Writer) classify(err error) error {
	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrWriteTimeout, err)
	case w.ctx.Err() != nil:
		return fmt.Errorf("%w: %w", ErrClientGone, err)
	default:
		return err
	}
}

// Written returns the number of body bytes accepted so far.
func (w *Writer) Written() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Err returns the error that ended the response early, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Finish clears the write deadline so it does not leak into the next request
// on a kept-alive connection, and records delivery metrics under assetType.
func (w *Writer) Finish(assetType string) {
	w.mu.Lock()
	written, err, deadlines := w.written, w.err, w.deadlines
	w.mu.Unlock()

	if deadlines {
		if derr := w.rc.SetWriteDeadline(time.Time{}); derr != nil {
			logging.Debug("Failed to clear write deadline: %v", derr)
		}
	}

	metrics.AssetBytesServed.WithLabelValues(assetType).Add(float64(written))
	if err != nil {
		reason := AbortReason(err)
		metrics.AssetStreamAborts.WithLabelValues(reason).Inc()
		logging.Debug("Asset response aborted after %d bytes (%s): %v", written, reason, err)
	}
}

// AbortReason maps a Writer error to a metric label.
func AbortReason(err error) string {
	switch {
	case errors.Is(err, ErrWriteTimeout):
		return "write_timeout"
	case errors.Is(err, ErrClientGone):
		return "client_gone"
	default:
		return "write_error"
	}
}
