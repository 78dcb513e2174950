package transcoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"clipstream/internal/logging"
	"clipstream/internal/metrics"
)

// ErrShuttingDown is returned by Run after Cleanup has been called.
var ErrShuttingDown = errors.New("transcoder is shutting down")

// waitDelay bounds how long Wait blocks on inherited pipes after the
// process has been killed.
const waitDelay = 5 * time.Second

const stderrTail = 4096

// ProcessError describes a tool that exited unsuccessfully.
type ProcessError struct {
	Tool   string
	Err    error
	Stderr string
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	if line := lastLine(e.Stderr); line != "" {
		msg += ": " + line
	}
	return msg
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Run executes bin with args and waits for it. The process is registered so
// that Cleanup can kill it, and is killed when ctx is done. If ctx ended the
// process, the returned error wraps ctx.Err(); if Cleanup killed it, the
// error wraps ErrShuttingDown.
func (t *Transcoder) Run(ctx context.Context, tool, bin string, args []string, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.WaitDelay = waitDelay
	cmd.Stdout = stdout
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr

	t.processMu.Lock()
	if t.closed {
		t.processMu.Unlock()
		return ErrShuttingDown
	}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		t.processMu.Unlock()
		metrics.ProcessRunsTotal.WithLabelValues(tool, "error").Inc()
		return &ProcessError{Tool: tool, Err: err}
	}
	t.nextID++
	id := t.nextID
	t.processes[id] = cmd
	t.processMu.Unlock()

	metrics.ProcessesRunning.Inc()
	logging.Debug("Started %s (pid %d): %s %s", tool, cmd.Process.Pid, bin, strings.Join(args, " "))

	err := cmd.Wait()

	t.processMu.Lock()
	delete(t.processes, id)
	closed := t.closed
	t.processMu.Unlock()

	metrics.ProcessesRunning.Dec()
	metrics.ProcessDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())

	if err == nil {
		metrics.ProcessRunsTotal.WithLabelValues(tool, "success").Inc()
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		status := "error"
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			status = "timeout"
		}
		metrics.ProcessRunsTotal.WithLabelValues(tool, status).Inc()
		return fmt.Errorf("%s interrupted after %s: %w", tool, time.Since(start).Round(time.Millisecond), ctxErr)
	}

	// Killed by Cleanup.
	if closed {
		metrics.ProcessRunsTotal.WithLabelValues(tool, "error").Inc()
		return fmt.Errorf("%s killed after %s: %w", tool, time.Since(start).Round(time.Millisecond), ErrShuttingDown)
	}

	metrics.ProcessRunsTotal.WithLabelValues(tool, "error").Inc()
	logging.Debug("%s stderr: %s", tool, stderr.String())
	return &ProcessError{Tool: tool, Err: err, Stderr: stderr.String()}
}

// Running returns the number of tracked child processes.
func (t *Transcoder) Running() int {
	t.processMu.Lock()
	defer t.processMu.Unlock()
	return len(t.processes)
}

// Cleanup kills all running child processes and makes further Run calls
// fail with ErrShuttingDown.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	t.closed = true
	for _, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing %s (pid %d)", cmd.Path, cmd.Process.Pid)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill pid %d: %v", cmd.Process.Pid, err)
			}
		}
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
