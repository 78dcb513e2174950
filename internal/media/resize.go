package media

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
)

// Resizer scales a decoded frame to a target width and encodes it as JPEG.
type Resizer interface {
	Name() string
	Resize(frame []byte, width int) ([]byte, error)
}

// ImagingResizer resizes with github.com/disintegration/imaging.
type ImagingResizer struct {
	Quality int
}

// Name returns the engine label used in logs and metrics.
func (r ImagingResizer) Name() string {
	return "imaging"
}

// Resize decodes frame, scales it to width keeping the aspect ratio, and
// returns JPEG bytes.
func (r ImagingResizer) Resize(frame []byte, width int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	thumb := imaging.Resize(img, width, 0, imaging.Lanczos)

	quality := r.Quality
	if quality == 0 {
		quality = defaultQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
