package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"clipstream/internal/logging"
)

// ErrNoVideoStream is returned for inputs ffprobe can open but that carry no
// video, such as audio-only files.
var ErrNoVideoStream = errors.New("no video stream found")

// Runner executes an external tool. It is satisfied by *transcoder.Transcoder.
type Runner interface {
	Run(ctx context.Context, tool, bin string, args []string, stdout io.Writer) error
}

// Result is what the pipeline learns about an upload before encoding it.
type Result struct {
	DurationSeconds int64  `json:"durationSeconds"`
	VideoCodec      string `json:"videoCodec"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	HasAudio        bool   `json:"hasAudio"`
	FormatName      string `json:"formatName"`
}

// Prober runs ffprobe against uploaded files.
type Prober struct {
	runner      Runner
	ffprobePath string
	timeout     time.Duration
}

// Options configures a Prober.
type Options struct {
	FFprobePath string
	Timeout     time.Duration
}

// New creates a Prober that starts ffprobe through runner.
func New(runner Runner, opts Options) *Prober {
	if opts.FFprobePath == "" {
		opts.FFprobePath = "ffprobe"
	}
	return &Prober{
		runner:      runner,
		ffprobePath: opts.FFprobePath,
		timeout:     opts.Timeout,
	}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Probe inspects the file at path.
func (p *Prober) Probe(ctx context.Context, path string) (Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	args := []string{
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	var stdout bytes.Buffer
	if err := p.runner.Run(ctx, "ffprobe", p.ffprobePath, args, &stdout); err != nil {
		return Result{}, err
	}

	return parse(stdout.Bytes())
}

func parse(data []byte) (Result, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Result{}, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}

	res := Result{
		FormatName:      out.Format.FormatName,
		DurationSeconds: parseDuration(out.Format.Duration),
	}

	foundVideo := false
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if !foundVideo {
				foundVideo = true
				res.VideoCodec = s.CodecName
				res.Width = s.Width
				res.Height = s.Height
			}
		case "audio":
			res.HasAudio = true
		}
	}
	if !foundVideo {
		return Result{}, ErrNoVideoStream
	}

	return res, nil
}

// parseDuration rounds ffprobe's fractional seconds to the nearest whole
// second. Anything that is not a finite non-negative number yields 0.
func parseDuration(s string) int64 {
	if s == "" || s == "N/A" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		if err != nil {
			logging.Debug("Unparseable ffprobe duration %q: %v", s, err)
		}
		return 0
	}
	if f >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Round(f))
}
