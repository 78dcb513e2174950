package probe

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipstream/internal/transcoder"
)

const sampleOutput = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_name": "aac", "codec_type": "audio"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "30.021333"}
}`

// fakeProbe writes an ffprobe stand-in that prints output and exits with code.
func fakeProbe(t *testing.T, output string, code int) string {
	t.Helper()
	dir := t.TempDir()
	outFile := filepath.Join(dir, "out.json")
	if err := os.WriteFile(outFile, []byte(output), 0o644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat '" + outFile + "'\n"
	if code != 0 {
		script += "echo 'Invalid data found when processing input' >&2\nexit 1\n"
	}
	path := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProbe(t *testing.T) {
	bin := fakeProbe(t, sampleOutput, 0)
	p := New(transcoder.New(transcoder.Options{}), Options{FFprobePath: bin, Timeout: 10 * time.Second})

	input := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(input, []byte("not really mp4"), 0o644); err != nil {
		t.Fatal(err)
	}
	before, _ := os.Stat(input)

	res, err := p.Probe(context.Background(), input)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}

	expected := Result{
		DurationSeconds: 30,
		VideoCodec:      "h264",
		Width:           1920,
		Height:          1080,
		HasAudio:        true,
		FormatName:      "mov,mp4,m4a,3gp,3g2,mj2",
	}
	if res != expected {
		t.Errorf("Probe() = %+v, want %+v", res, expected)
	}

	after, _ := os.Stat(input)
	if !after.ModTime().Equal(before.ModTime()) || after.Size() != before.Size() {
		t.Error("Probe must not modify the input file")
	}
}

func TestProbe_ToolFailure(t *testing.T) {
	bin := fakeProbe(t, "", 1)
	p := New(transcoder.New(transcoder.Options{}), Options{FFprobePath: bin})

	_, err := p.Probe(context.Background(), "/dev/null")
	var perr *transcoder.ProcessError
	if !errors.As(err, &perr) {
		t.Fatalf("Probe() error = %v, want *transcoder.ProcessError", err)
	}
}

func TestProbe_Timeout(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffprobe")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexec sleep 10\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	p := New(transcoder.New(transcoder.Options{}), Options{FFprobePath: bin, Timeout: 100 * time.Millisecond})

	start := time.Now()
	res, err := p.Probe(context.Background(), "/dev/null")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Probe() error = %v, want context.DeadlineExceeded", err)
	}
	if res != (Result{}) {
		t.Errorf("A timed out probe must not return a result, got %+v", res)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("ffprobe was not killed at the deadline")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		output   string
		duration int64
		hasAudio bool
		wantErr  error
	}{
		{
			name:     "video and audio",
			output:   sampleOutput,
			duration: 30,
			hasAudio: true,
		},
		{
			name:     "video only rounds up",
			output:   `{"streams":[{"codec_type":"video","codec_name":"vp9"}],"format":{"duration":"12.5"}}`,
			duration: 13,
		},
		{
			name:     "missing duration",
			output:   `{"streams":[{"codec_type":"video"}],"format":{}}`,
			duration: 0,
		},
		{
			name:     "N/A duration",
			output:   `{"streams":[{"codec_type":"video"}],"format":{"duration":"N/A"}}`,
			duration: 0,
		},
		{
			name:     "zero duration",
			output:   `{"streams":[{"codec_type":"video"}],"format":{"duration":"0.000000"}}`,
			duration: 0,
		},
		{
			name:    "audio only",
			output:  `{"streams":[{"codec_type":"audio","codec_name":"mp3"}],"format":{"duration":"200.1"}}`,
			wantErr: ErrNoVideoStream,
		},
		{
			name:    "no streams",
			output:  `{"format":{"duration":"1"}}`,
			wantErr: ErrNoVideoStream,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parse([]byte(tt.output))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse() error = %v", err)
			}
			if res.DurationSeconds != tt.duration {
				t.Errorf("DurationSeconds = %d, want %d", res.DurationSeconds, tt.duration)
			}
			if res.HasAudio != tt.hasAudio {
				t.Errorf("HasAudio = %v, want %v", res.HasAudio, tt.hasAudio)
			}
		})
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	if _, err := parse([]byte("Invalid data found")); err == nil {
		t.Error("parse() should fail on non-JSON output")
	}
}

func TestParseDurationIsTotal(t *testing.T) {
	inputs := []string{
		"", "N/A", "abc", "-5", "-0.4", "NaN", "Inf", "-Inf", "1e400",
		"0", "0.49", "0.5", "29.999", "30.021333", "1e30",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got := parseDuration(in)
			if got < 0 {
				t.Errorf("parseDuration(%q) = %d, must be non-negative", in, got)
			}
		})
	}

	if got := parseDuration("29.999"); got != 30 {
		t.Errorf("parseDuration(29.999) = %d, want 30", got)
	}
	if got := parseDuration("1e30"); got != math.MaxInt64 {
		t.Errorf("parseDuration(1e30) = %d, want MaxInt64", got)
	}
}
