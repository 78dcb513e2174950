package transcoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"clipstream/internal/filesystem"
	"clipstream/internal/logging"
)

// Encoding policy. These are fixed and not configurable per job.
const (
	// SegmentSeconds is the target length of every HLS segment.
	SegmentSeconds = 6
	// ManifestName is the playlist file written into each job directory.
	ManifestName = "index.m3u8"
	// SegmentPattern names the segment files ffmpeg writes.
	SegmentPattern = "segment_%05d.ts"
)

// Transcoder owns the external encoder processes of the service.
type Transcoder struct {
	ffmpegPath    string
	encodeTimeout time.Duration

	processes map[uint64]*exec.Cmd
	processMu sync.Mutex
	nextID    uint64
	closed    bool
}

// Options configures a Transcoder.
type Options struct {
	FFmpegPath    string
	EncodeTimeout time.Duration
}

// SegmentManifest is a playlist together with the segment files it references.
type SegmentManifest struct {
	Path     string   `json:"path"`
	Segments []string `json:"segments"`
	// TargetDuration is the #EXT-X-TARGETDURATION value, in seconds.
	TargetDuration int `json:"targetDuration"`
}

// New creates a new Transcoder instance.
func New(opts Options) *Transcoder {
	if opts.FFmpegPath == "" {
		opts.FFmpegPath = "ffmpeg"
	}
	return &Transcoder{
		ffmpegPath:    opts.FFmpegPath,
		encodeTimeout: opts.EncodeTimeout,
		processes:     make(map[uint64]*exec.Cmd),
	}
}

// FFmpegPath returns the encoder binary used for all ffmpeg invocations.
func (t *Transcoder) FFmpegPath() string {
	return t.ffmpegPath
}

// hlsArgs builds the single-rendition HLS command line. The playlist is only
// complete once ffmpeg exits; with the vod playlist type and temp_file flag
// it never references a segment that is still being written.
func hlsArgs(input, outputDir string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", input,
		"-map", "0:v:0",
		"-map", "0:a:0?",
		"-c:v", "libx264",
		"-profile:v", "baseline",
		"-level", "3.0",
		"-pix_fmt", "yuv420p",
		"-preset", "veryfast",
		"-force_key_frames", fmt.Sprintf("expr:gte(t,n_forced*%d)", SegmentSeconds),
		"-c:a", "aac",
		"-b:a", "128k",
		"-ac", "2",
		"-start_number", "0",
		"-hls_time", strconv.Itoa(SegmentSeconds),
		"-hls_list_size", "0",
		"-hls_playlist_type", "vod",
		"-hls_flags", "temp_file",
		"-hls_segment_filename", filepath.Join(outputDir, SegmentPattern),
		"-f", "hls",
		filepath.Join(outputDir, ManifestName),
	}
}

// Segment encodes input into an HLS stream under outputDir and returns the
// verified manifest. outputDir is created if it does not exist.
func (t *Transcoder) Segment(ctx context.Context, input, outputDir string) (*SegmentManifest, error) {
	if t.encodeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.encodeTimeout)
		defer cancel()
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create segment directory: %w", err)
	}

	start := time.Now()
	if err := t.Run(ctx, "ffmpeg_hls", t.ffmpegPath, hlsArgs(input, outputDir), nil); err != nil {
		return nil, err
	}

	manifest, err := ReadManifest(filepath.Join(outputDir, ManifestName))
	if err != nil {
		return nil, err
	}

	logging.Debug("Segmented %s into %d segments in %v", input, len(manifest.Segments), time.Since(start))
	return manifest, nil
}

// Manifest validation errors.
var (
	ErrNotPlaylist    = errors.New("not an HLS playlist")
	ErrNoSegments     = errors.New("playlist references no segments")
	ErrBadSegment     = errors.New("playlist references a segment outside its directory")
	ErrMissingSegment = errors.New("playlist references a missing segment")
)

// ReadManifest parses the playlist at path and verifies that every segment
// it references exists next to it. The playlist is never modified.
func ReadManifest(path string) (*SegmentManifest, error) {
	f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	manifest := &SegmentManifest{Path: path}
	dir := filepath.Dir(path)

	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			if line != "#EXTM3U" {
				return nil, ErrNotPlaylist
			}
			first = false
			continue
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			if v, ok := strings.CutPrefix(line, "#EXT-X-TARGETDURATION:"); ok {
				manifest.TargetDuration, _ = strconv.Atoi(v)
			}
			continue
		}

		if strings.Contains(line, "/") || strings.Contains(line, `\`) || line == ".." {
			return nil, fmt.Errorf("%w: %q", ErrBadSegment, line)
		}
		segPath := filepath.Join(dir, line)
		if _, err := filesystem.StatWithRetry(segPath, filesystem.DefaultRetryConfig()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMissingSegment, line, err)
		}
		manifest.Segments = append(manifest.Segments, segPath)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if first {
		return nil, ErrNotPlaylist
	}
	if len(manifest.Segments) == 0 {
		return nil, ErrNoSegments
	}

	return manifest, nil
}
