package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"clipstream/internal/database"
	"clipstream/internal/filesystem"
	"clipstream/internal/layout"
	"clipstream/internal/logging"
	"clipstream/internal/metrics"
	"clipstream/internal/pipeline"
)

const (
	// DefaultInterval between passes.
	DefaultInterval = time.Hour
	// lookups is the number of concurrent catalog lookups per pass.
	lookups = 4
)

// Catalog looks entries up by identifier.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*database.Entry, error)
}

// Pauser reports memory pressure. Passes are skipped while it is paused.
type Pauser interface {
	IsPaused() bool
}

// ActiveJobs lists jobs that are queued or running.
type ActiveJobs interface {
	Active() []*pipeline.Job
}

// Config wires a Reconciler.
type Config struct {
	Layout    *layout.Manager
	UploadDir string
	Catalog   Catalog
	// Grace is the minimum age of an artifact before it may be removed.
	Grace    time.Duration
	Interval time.Duration
	Pauser   Pauser
	// Jobs protects artifacts of queued jobs, which may wait longer than
	// Grace. Optional.
	Jobs ActiveJobs
}

// Result summarizes one pass.
type Result struct {
	Segments   int
	Thumbnails int
	Uploads    int
	Kept       int
}

// Removed returns the number of artifacts removed.
func (r Result) Removed() int {
	return r.Segments + r.Thumbnails + r.Uploads
}

// Reconciler periodically removes orphaned artifacts.
type Reconciler struct {
	config  Config
	now     func() time.Time
	running atomic.Bool

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a Reconciler.
func New(config Config) *Reconciler {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	return &Reconciler{
		config:   config,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start runs a pass immediately and then every Interval until Stop.
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ticker := time.NewTicker(r.config.Interval)
		defer ticker.Stop()

		for {
			r.runOnce()
			select {
			case <-ticker.C:
			case <-r.stopChan:
				return
			}
		}
	}()
	logging.Info("Reconciler started (interval: %v, grace: %v)", r.config.Interval, r.config.Grace)
}

// Stop ends the background loop and waits for a running pass to finish.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopChan) })
	r.wg.Wait()
}

func (r *Reconciler) runOnce() {
	if r.config.Pauser != nil && r.config.Pauser.IsPaused() {
		logging.Debug("Reconcile pass skipped under memory pressure")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-r.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	res, err := r.Run(ctx)
	if err != nil {
		logging.Warn("Reconcile pass incomplete: %v", err)
		return
	}
	if res.Removed() > 0 {
		logging.Info("Reconcile removed %d segment dirs, %d thumbnails, %d uploads",
			res.Segments, res.Thumbnails, res.Uploads)
	}
}

// Run performs one pass. Only one pass runs at a time; a concurrent call
// returns immediately with an empty result.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Result{}, nil
	}
	defer r.running.Store(false)

	start := time.Now()
	res, err := r.run(ctx)
	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ReconcileRunsTotal.WithLabelValues(status).Inc()
	return res, err
}

func (r *Reconciler) run(ctx context.Context) (Result, error) {
	var res Result
	var mu sync.Mutex
	// active counts skips made on this goroutine; workers hold mu for res.
	active := 0
	cutoff := r.now().Add(-r.config.Grace)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookups)

	root := r.config.Layout.Root()
	activeIDs, activeRaw := r.activeArtifacts()

	// Segment directories
	hlsEntries, err := readDir(filepath.Join(root, "hls"))
	if err != nil {
		return res, err
	}
	for _, entry := range hlsEntries {
		if !entry.IsDir() || !isCanonicalID(entry.Name()) || !olderThan(entry, cutoff) {
			continue
		}
		id := entry.Name()
		if activeIDs[id] {
			active++
			continue
		}
		g.Go(func() error {
			orphan, err := r.isOrphan(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if !orphan {
				res.Kept++
				return nil
			}
			paths, _ := r.config.Layout.ForID(id)
			paths.Thumbnail = ""
			if err := r.config.Layout.Remove(paths); err != nil {
				logging.Warn("Reconcile: failed to remove segments of %s: %v", id, err)
				return nil
			}
			res.Segments++
			metrics.ReconcileRemovedTotal.WithLabelValues("segments").Inc()
			return nil
		})
	}

	// Thumbnails and interrupted thumbnail writes
	thumbsDir := filepath.Join(root, "thumbs")
	thumbEntries, err := readDir(thumbsDir)
	if err != nil {
		_ = g.Wait()
		return res, err
	}
	for _, entry := range thumbEntries {
		if entry.IsDir() || !olderThan(entry, cutoff) {
			continue
		}
		name := entry.Name()
		path := filepath.Join(thumbsDir, name)

		if strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp") {
			g.Go(func() error {
				r.removeFile(path, "thumbnail", &mu, &res.Thumbnails)
				return nil
			})
			continue
		}

		id, ok := strings.CutSuffix(name, ".jpg")
		if !ok || !isCanonicalID(id) || activeIDs[id] {
			continue
		}
		g.Go(func() error {
			orphan, err := r.isOrphan(gctx, id)
			if err != nil {
				return err
			}
			if orphan {
				r.removeFile(path, "thumbnail", &mu, &res.Thumbnails)
			}
			return nil
		})
	}

	// Raw uploads are never referenced once a job ends.
	if r.config.UploadDir != "" {
		uploads, err := readDir(r.config.UploadDir)
		if err != nil {
			_ = g.Wait()
			return res, err
		}
		for _, entry := range uploads {
			if !entry.Type().IsRegular() || !olderThan(entry, cutoff) {
				continue
			}
			path := filepath.Join(r.config.UploadDir, entry.Name())
			if activeRaw[filepath.Clean(path)] {
				continue
			}
			r.removeFile(path, "raw", &mu, &res.Uploads)
		}
	}

	err = g.Wait()
	res.Kept += active
	return res, err
}

func (r *Reconciler) activeArtifacts() (ids, raw map[string]bool) {
	ids, raw = map[string]bool{}, map[string]bool{}
	if r.config.Jobs == nil {
		return ids, raw
	}
	for _, job := range r.config.Jobs.Active() {
		ids[job.ID] = true
		raw[filepath.Clean(job.Request.RawPath)] = true
	}
	return ids, raw
}

func (r *Reconciler) isOrphan(ctx context.Context, id string) (bool, error) {
	_, err := r.config.Catalog.GetByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", id, err)
	}
	return false, nil
}

func (r *Reconciler) removeFile(path, artifact string, mu *sync.Mutex, counter *int) {
	if err := filesystem.RemoveWithRetry(path, filesystem.DefaultRetryConfig()); err != nil {
		logging.Warn("Reconcile: failed to remove %s: %v", path, err)
		return
	}
	mu.Lock()
	*counter++
	mu.Unlock()
	metrics.ReconcileRemovedTotal.WithLabelValues(artifact).Inc()
}

// readDir lists dir, treating a missing directory as empty.
func readDir(dir string) ([]os.DirEntry, error) {
	entries, err := filesystem.ReadDirWithRetry(dir, filesystem.DefaultRetryConfig())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}

func olderThan(entry os.DirEntry, cutoff time.Time) bool {
	info, err := entry.Info()
	if err != nil {
		return false
	}
	return info.ModTime().Before(cutoff)
}

func isCanonicalID(s string) bool {
	parsed, err := uuid.Parse(s)
	return err == nil && parsed.String() == s
}
