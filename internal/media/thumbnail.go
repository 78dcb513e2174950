package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"clipstream/internal/filesystem"
	"clipstream/internal/logging"
	"clipstream/internal/metrics"
)

const (
	// ThumbnailWidth is the fixed width of every catalog thumbnail.
	ThumbnailWidth = 640
	defaultQuality = 85
)

// ErrEmptyFrame is returned when ffmpeg exits cleanly without writing a frame.
var ErrEmptyFrame = errors.New("ffmpeg produced no frame")

// Runner executes an external tool. It is satisfied by *transcoder.Transcoder.
type Runner interface {
	Run(ctx context.Context, tool, bin string, args []string, stdout io.Writer) error
}

// Thumbnailer extracts a still frame from a video and stores it as JPEG.
type Thumbnailer struct {
	runner     Runner
	ffmpegPath string
	timeout    time.Duration
	resizer    Resizer
}

// ThumbnailOptions configures a Thumbnailer.
type ThumbnailOptions struct {
	FFmpegPath string
	Timeout    time.Duration
	Resizer    Resizer
}

// NewThumbnailer creates a Thumbnailer that starts ffmpeg through runner.
func NewThumbnailer(runner Runner, opts ThumbnailOptions) *Thumbnailer {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	if opts.Resizer == nil {
		opts.Resizer = ImagingResizer{}
	}
	logging.Debug("Thumbnailer: engine %s, width %d", opts.Resizer.Name(), ThumbnailWidth)
	return &Thumbnailer{
		runner:     runner,
		ffmpegPath: opts.FFmpegPath,
		timeout:    opts.Timeout,
		resizer:    opts.Resizer,
	}
}

// Generate writes exactly one JPEG frame of input to target. seek is where
// to look for the frame; zero starts from the beginning. target is written
// atomically, so it either holds a complete image or does not exist.
func (t *Thumbnailer) Generate(ctx context.Context, input, target string, seek time.Duration) error {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	err := t.generate(ctx, input, target, seek)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ThumbnailGenerationsTotal.WithLabelValues(t.resizer.Name(), status).Inc()
	return err
}

func (t *Thumbnailer) generate(ctx context.Context, input, target string, seek time.Duration) error {
	start := time.Now()
	frame, err := t.extractFrame(ctx, input, seek)
	if err != nil {
		return err
	}
	metrics.ThumbnailPhaseDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())

	start = time.Now()
	data, err := t.resizer.Resize(frame, ThumbnailWidth)
	if err != nil {
		return err
	}
	metrics.ThumbnailPhaseDuration.WithLabelValues("resize").Observe(time.Since(start).Seconds())

	start = time.Now()
	if err := writeAtomic(target, data); err != nil {
		return err
	}
	metrics.ThumbnailPhaseDuration.WithLabelValues("write").Observe(time.Since(start).Seconds())

	logging.Debug("Thumbnail written: %s (%d bytes)", target, len(data))
	return nil
}

// extractFrame asks ffmpeg for one representative frame as PNG. Seeking can
// fail on streams with broken indexes, so a failed seek is retried from the
// start of the file.
func (t *Thumbnailer) extractFrame(ctx context.Context, input string, seek time.Duration) ([]byte, error) {
	var stdout bytes.Buffer

	err := t.runner.Run(ctx, "ffmpeg_frame", t.ffmpegPath, frameArgs(input, seek), &stdout)
	if err == nil && stdout.Len() == 0 {
		err = ErrEmptyFrame
	}
	if err != nil && seek > 0 && ctx.Err() == nil {
		logging.Debug("Frame extraction at %v failed for %s: %v, retrying from start", seek, input, err)
		metrics.ThumbnailSeekFallbacks.Inc()

		stdout.Reset()
		err = t.runner.Run(ctx, "ffmpeg_frame", t.ffmpegPath, frameArgs(input, 0), &stdout)
		if err == nil && stdout.Len() == 0 {
			err = ErrEmptyFrame
		}
	}
	if err != nil {
		return nil, err
	}

	return stdout.Bytes(), nil
}

func frameArgs(input string, seek time.Duration) []string {
	args := []string{"-hide_banner", "-nostdin"}
	if seek > 0 {
		args = append(args, "-ss", strconv.FormatFloat(seek.Seconds(), 'f', 3, 64))
	}
	return append(args,
		"-i", input,
		"-vf", "thumbnail",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
}

func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp thumbnail: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write thumbnail: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write thumbnail: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write thumbnail: %w", err)
	}
	if err := filesystem.RenameWithRetry(tmpName, target, filesystem.DefaultRetryConfig()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to publish thumbnail: %w", err)
	}
	return nil
}
