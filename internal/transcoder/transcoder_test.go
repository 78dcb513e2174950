package transcoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fakeHLS = `#!/bin/sh
out=""
for a in "$@"; do out="$a"; done
dir=$(dirname "$out")
printf 'seg0' > "$dir/segment_00000.ts"
printf 'seg1' > "$dir/segment_00001.ts"
cat > "$out" <<PLAYLIST
#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:6
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-PLAYLIST-TYPE:VOD
#EXTINF:6.000000,
segment_00000.ts
#EXTINF:4.000000,
segment_00001.ts
#EXT-X-ENDLIST
PLAYLIST
`

// writeScript writes an executable shell script standing in for ffmpeg.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("Failed to write fake ffmpeg: %v", err)
	}
	return path
}

func TestHLSArgs(t *testing.T) {
	args := strings.Join(hlsArgs("/up/in.mov", "/assets/hls/abc"), " ")

	expected := []string{
		"-i /up/in.mov",
		"-c:v libx264",
		"-profile:v baseline",
		"-level 3.0",
		"-c:a aac",
		"-start_number 0",
		"-hls_time 6",
		"-hls_list_size 0",
		"-hls_playlist_type vod",
		"-hls_segment_filename /assets/hls/abc/segment_%05d.ts",
		"-f hls /assets/hls/abc/index.m3u8",
	}
	for _, want := range expected {
		if !strings.Contains(args, want) {
			t.Errorf("Expected args to contain %q, got %q", want, args)
		}
	}
	if !strings.HasSuffix(args, "/assets/hls/abc/index.m3u8") {
		t.Errorf("Manifest path should be the last argument, got %q", args)
	}
}

func TestSegment_Success(t *testing.T) {
	tr := New(Options{FFmpegPath: writeScript(t, fakeHLS), EncodeTimeout: 10 * time.Second})
	outDir := filepath.Join(t.TempDir(), "hls", "job")

	manifest, err := tr.Segment(context.Background(), "/dev/null", outDir)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}

	if manifest.Path != filepath.Join(outDir, ManifestName) {
		t.Errorf("manifest.Path = %q, want %q", manifest.Path, filepath.Join(outDir, ManifestName))
	}
	if len(manifest.Segments) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(manifest.Segments))
	}
	if manifest.Segments[0] != filepath.Join(outDir, "segment_00000.ts") {
		t.Errorf("Segments[0] = %q", manifest.Segments[0])
	}
	if manifest.TargetDuration != SegmentSeconds {
		t.Errorf("TargetDuration = %d, want %d", manifest.TargetDuration, SegmentSeconds)
	}
	if tr.Running() != 0 {
		t.Errorf("Expected no tracked processes after Segment, got %d", tr.Running())
	}
}

func TestSegment_DoesNotRewriteManifest(t *testing.T) {
	tr := New(Options{FFmpegPath: writeScript(t, fakeHLS)})
	outDir := t.TempDir()

	manifest, err := tr.Segment(context.Background(), "/dev/null", outDir)
	if err != nil {
		t.Fatalf("Segment() error = %v", err)
	}
	before, _ := os.ReadFile(manifest.Path)
	if _, err := ReadManifest(manifest.Path); err != nil {
		t.Fatalf("ReadManifest() error = %v", err)
	}
	after, _ := os.ReadFile(manifest.Path)
	if string(before) != string(after) {
		t.Error("Manifest should be left exactly as the encoder wrote it")
	}
}

func TestSegment_NonZeroExit(t *testing.T) {
	script := "#!/bin/sh\necho 'frame=0' >&2\necho 'in.mp4: Invalid data found when processing input' >&2\nexit 1\n"
	tr := New(Options{FFmpegPath: writeScript(t, script)})

	_, err := tr.Segment(context.Background(), "/dev/null", t.TempDir())
	if err == nil {
		t.Fatal("Segment() should fail when ffmpeg exits non-zero")
	}

	var perr *ProcessError
	if !errors.As(err, &perr) {
		t.Fatalf("Expected *ProcessError, got %T: %v", err, err)
	}
	if perr.Tool != "ffmpeg_hls" {
		t.Errorf("Tool = %q, want ffmpeg_hls", perr.Tool)
	}
	if !strings.HasSuffix(err.Error(), "Invalid data found when processing input") {
		t.Errorf("Error should end with the last stderr line, got %q", err.Error())
	}
}

func TestSegment_Timeout(t *testing.T) {
	tr := New(Options{FFmpegPath: writeScript(t, "#!/bin/sh\nexec sleep 10\n"), EncodeTimeout: 100 * time.Millisecond})

	start := time.Now()
	_, err := tr.Segment(context.Background(), "/dev/null", t.TempDir())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Segment() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Segment took %v, the encoder should have been killed", elapsed)
	}
}

func TestSegment_Canceled(t *testing.T) {
	tr := New(Options{FFmpegPath: writeScript(t, "#!/bin/sh\nexec sleep 10\n")})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := tr.Segment(ctx, "/dev/null", t.TempDir())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Segment() error = %v, want context.Canceled", err)
	}
}

func TestSegment_MissingSegment(t *testing.T) {
	script := "#!/bin/sh\nout=\"\"\nfor a in \"$@\"; do out=\"$a\"; done\nprintf '#EXTM3U\\n#EXTINF:6.0,\\nsegment_00000.ts\\n#EXT-X-ENDLIST\\n' > \"$out\"\n"
	tr := New(Options{FFmpegPath: writeScript(t, script)})

	_, err := tr.Segment(context.Background(), "/dev/null", t.TempDir())
	if !errors.Is(err, ErrMissingSegment) {
		t.Fatalf("Segment() error = %v, want ErrMissingSegment", err)
	}
}

func TestReadManifest(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		segments []string
		wantErr  error
		wantSegs int
	}{
		{
			name:     "valid playlist",
			content:  "#EXTM3U\n#EXT-X-TARGETDURATION:6\n#EXTINF:6.0,\na.ts\n#EXTINF:2.5,\nb.ts\n#EXT-X-ENDLIST\n",
			segments: []string{"a.ts", "b.ts"},
			wantSegs: 2,
		},
		{
			name:     "blank lines and CRLF",
			content:  "#EXTM3U\r\n\r\n#EXTINF:6.0,\r\na.ts\r\n",
			segments: []string{"a.ts"},
			wantSegs: 1,
		},
		{
			name:    "missing header",
			content: "#EXTINF:6.0,\na.ts\n",
			wantErr: ErrNotPlaylist,
		},
		{
			name:    "empty file",
			content: "",
			wantErr: ErrNotPlaylist,
		},
		{
			name:    "no segments",
			content: "#EXTM3U\n#EXT-X-ENDLIST\n",
			wantErr: ErrNoSegments,
		},
		{
			name:    "segment outside directory",
			content: "#EXTM3U\n#EXTINF:6.0,\n../other/a.ts\n",
			wantErr: ErrBadSegment,
		},
		{
			name:     "segment not on disk",
			content:  "#EXTM3U\n#EXTINF:6.0,\na.ts\n#EXTINF:6.0,\nb.ts\n",
			segments: []string{"a.ts"},
			wantErr:  ErrMissingSegment,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, s := range tt.segments {
				if err := os.WriteFile(filepath.Join(dir, s), []byte("ts"), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			path := filepath.Join(dir, ManifestName)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}

			manifest, err := ReadManifest(path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("ReadManifest() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadManifest() error = %v", err)
			}
			if len(manifest.Segments) != tt.wantSegs {
				t.Errorf("Expected %d segments, got %d", tt.wantSegs, len(manifest.Segments))
			}
		})
	}
}

func TestReadManifest_NotExist(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), ManifestName))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadManifest() error = %v, want os.ErrNotExist", err)
	}
}
