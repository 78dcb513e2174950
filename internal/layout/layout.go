package layout

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"clipstream/internal/filesystem"
	"clipstream/internal/logging"
	"clipstream/internal/metrics"

	"github.com/google/uuid"
)

const (
	hlsDir       = "hls"
	thumbsDir    = "thumbs"
	manifestName = "index.m3u8"

	maxAllocateAttempts = 5
)

// ErrCollision is returned when no unused identifier could be claimed.
var ErrCollision = errors.New("could not allocate an unused job identifier")

// ErrInvalidID is returned for identifiers that are not canonical UUIDs.
var ErrInvalidID = errors.New("invalid job identifier")

// Paths are the on-disk locations of one job's artifacts.
type Paths struct {
	ID         string
	SegmentDir string
	Manifest   string
	Thumbnail  string
}

// ManifestRel returns the manifest path relative to the asset root, using
// forward slashes.
func (p Paths) ManifestRel() string {
	return path.Join(hlsDir, p.ID, manifestName)
}

// ThumbnailRel returns the thumbnail path relative to the asset root, using
// forward slashes.
func (p Paths) ThumbnailRel() string {
	return path.Join(thumbsDir, p.ID+".jpg")
}

// Manager computes and prepares job paths under an asset root.
type Manager struct {
	root  string
	newID func() string
}

// New creates a Manager rooted at root.
func New(root string) *Manager {
	return &Manager{
		root:  root,
		newID: func() string { return uuid.NewString() },
	}
}

// Root returns the asset root directory.
func (m *Manager) Root() string {
	return m.root
}

// ForID computes the paths for id without touching the filesystem.
func (m *Manager) ForID(id string) (Paths, error) {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return Paths{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	segDir := filepath.Join(m.root, hlsDir, id)
	return Paths{
		ID:         id,
		SegmentDir: segDir,
		Manifest:   filepath.Join(segDir, manifestName),
		Thumbnail:  filepath.Join(m.root, thumbsDir, id+".jpg"),
	}, nil
}

// EnsureShared creates the shared hls and thumbs directories. It is safe to
// call repeatedly.
func (m *Manager) EnsureShared() error {
	for _, dir := range []string{filepath.Join(m.root, hlsDir), filepath.Join(m.root, thumbsDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

// Allocate generates a fresh identifier and exclusively creates its segment
// directory. An identifier whose directory already exists is never reused.
func (m *Manager) Allocate() (Paths, error) {
	if err := m.EnsureShared(); err != nil {
		return Paths{}, err
	}

	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		p, err := m.ForID(m.newID())
		if err != nil {
			return Paths{}, err
		}

		err = os.Mkdir(p.SegmentDir, 0o755)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return Paths{}, fmt.Errorf("failed to create segment directory: %w", err)
		}
		logging.Warn("Job identifier %s already in use, drawing another", p.ID)
	}

	return Paths{}, ErrCollision
}

// Remove deletes the segment directory and thumbnail of a job. Missing files
// are ignored, so calling it again after success is a no-op. Every artifact
// is attempted even if an earlier one fails.
func (m *Manager) Remove(p Paths) error {
	var errs []error

	if p.SegmentDir != "" {
		if err := filesystem.RemoveAllWithRetry(p.SegmentDir, filesystem.DefaultRetryConfig()); err != nil {
			metrics.PipelineCleanupErrors.WithLabelValues("segments").Inc()
			errs = append(errs, fmt.Errorf("segments: %w", err))
		}
	}
	if p.Thumbnail != "" {
		if err := filesystem.RemoveAllWithRetry(p.Thumbnail, filesystem.DefaultRetryConfig()); err != nil {
			metrics.PipelineCleanupErrors.WithLabelValues("thumbnail").Inc()
			errs = append(errs, fmt.Errorf("thumbnail: %w", err))
		}
	}

	return errors.Join(errs...)
}
