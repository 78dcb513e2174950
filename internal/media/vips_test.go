package media

import (
	"bytes"
	"image/jpeg"
	"testing"
)

// govips cannot restart after Shutdown, so these tests never shut it down.

func TestVipsLogLevel(t *testing.T) {
	if vipsLogLevel(0) == vipsLogLevel(3) {
		t.Error("debug and error levels should map to different vips levels")
	}
}

func TestVipsResizerRequiresInit(t *testing.T) {
	if IsVipsAvailable() {
		t.Skip("libvips already initialized")
	}
	if _, err := (VipsResizer{}).Resize([]byte("x"), ThumbnailWidth); err == nil {
		t.Error("Resize() should fail before InitVips")
	}
}

func TestVipsResizer(t *testing.T) {
	if err := InitVips(); err != nil {
		t.Skipf("libvips not available: %v", err)
	}
	if err := InitVips(); err != nil {
		t.Errorf("Second InitVips() call failed: %v", err)
	}

	out, err := VipsResizer{}.Resize(testFrame(t, 1280, 720), ThumbnailWidth)
	if err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("Resize() output is not JPEG: %v", err)
	}
	if img.Bounds().Dx() != ThumbnailWidth {
		t.Errorf("width = %d, want %d", img.Bounds().Dx(), ThumbnailWidth)
	}
	if (VipsResizer{}).Name() != "vips" {
		t.Error("Name() should be vips")
	}
}
