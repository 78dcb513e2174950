package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"clipstream/internal/database"
	"clipstream/internal/events"
	"clipstream/internal/filesystem"
	"clipstream/internal/jobstatus"
	"clipstream/internal/layout"
	"clipstream/internal/logging"
	"clipstream/internal/metrics"
	"clipstream/internal/probe"
	"clipstream/internal/transcoder"
)

// sideEffectTimeout bounds status and event writes made after a job's own
// context has ended.
const sideEffectTimeout = 5 * time.Second

// Prober reads stream metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (probe.Result, error)
}

// Segmenter writes the HLS rendition of a video into a directory.
type Segmenter interface {
	Segment(ctx context.Context, input, outputDir string) (*transcoder.SegmentManifest, error)
}

// Thumbnailer writes one still frame of a video.
type Thumbnailer interface {
	Generate(ctx context.Context, input, target string, seek time.Duration) error
}

// Publisher makes an entry durable.
type Publisher interface {
	Publish(ctx context.Context, e *database.Entry) error
}

// Config wires a Coordinator. Tracker and Events are optional.
type Config struct {
	Layout      *layout.Manager
	Prober      Prober
	Segmenter   Segmenter
	Thumbnailer Thumbnailer
	Catalog     Publisher
	Tracker     jobstatus.Tracker
	Events      events.Publisher
	MaxDuration time.Duration
}

// Coordinator runs ingestion jobs. It holds no per-job state, so one
// Coordinator serves any number of concurrent jobs.
type Coordinator struct {
	layout      *layout.Manager
	prober      Prober
	segmenter   Segmenter
	thumbnailer Thumbnailer
	catalog     Publisher
	tracker     jobstatus.Tracker
	events      events.Publisher
	maxDuration time.Duration
	now         func() time.Time
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg Config) *Coordinator {
	c := &Coordinator{
		layout:      cfg.Layout,
		prober:      cfg.Prober,
		segmenter:   cfg.Segmenter,
		thumbnailer: cfg.Thumbnailer,
		catalog:     cfg.Catalog,
		tracker:     cfg.Tracker,
		events:      cfg.Events,
		maxDuration: cfg.MaxDuration,
		now:         time.Now,
	}
	if c.events == nil {
		c.events = events.Noop{}
	}
	return c
}

// Run accepts req and processes it to completion.
func (c *Coordinator) Run(ctx context.Context, req UploadRequest) (*database.Entry, error) {
	job, err := c.Accept(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.Execute(ctx, job)
}

// Accept validates req, allocates the job's identifier and directories, and
// records it as received. On error the raw upload has already been removed.
func (c *Coordinator) Accept(ctx context.Context, req UploadRequest) (*Job, error) {
	req = req.normalize()

	if perr := validate(req); perr != nil {
		c.removeRaw(nil, req.RawPath)
		c.recordOutcome(perr)
		return nil, perr
	}

	paths, err := c.layout.Allocate()
	if err != nil {
		c.removeRaw(nil, req.RawPath)
		perr := &Error{Kind: KindPublishFailed, Stage: StageIntake, Err: err}
		c.recordOutcome(perr)
		return nil, perr
	}

	job := &Job{
		ID:       paths.ID,
		Request:  req,
		Paths:    paths,
		Accepted: c.now(),
		log:      logging.ForJob(paths.ID),
	}
	c.setStatus(ctx, job, StatusReceived, nil)
	job.log.Info("Accepted upload %q from %s", req.Title, req.UploaderID)
	return job, nil
}

func validate(req UploadRequest) *Error {
	if req.UploaderID == "" {
		return invalidInput(StageIntake, "missing uploader identity")
	}
	if req.RawPath == "" {
		return invalidInput(StageIntake, "missing file")
	}
	info, err := os.Stat(req.RawPath)
	if err != nil {
		return invalidInput(StageIntake, "upload not readable: %v", err)
	}
	if !info.Mode().IsRegular() {
		return invalidInput(StageIntake, "upload is not a regular file")
	}
	if info.Size() == 0 {
		return invalidInput(StageIntake, "upload is empty")
	}
	return nil
}

// Execute runs an accepted job to done or failed. The returned error is
// always a *Error.
func (c *Coordinator) Execute(ctx context.Context, job *Job) (*database.Entry, error) {
	metrics.PipelineJobsInProgress.Inc()
	defer metrics.PipelineJobsInProgress.Dec()

	entry, perr := c.execute(ctx, job)
	if perr != nil {
		c.fail(ctx, job, perr)
		return nil, perr
	}

	c.removeRaw(job.log, job.Request.RawPath)
	c.setStatus(ctx, job, StatusDone, nil)
	c.publishEvent(ctx, job, events.Published(entry))
	c.recordOutcome(nil)
	metrics.PipelineJobDuration.Observe(c.now().Sub(job.Accepted).Seconds())
	job.log.Info("Published %q (%ds) in %v", entry.Title, entry.DurationSec, c.now().Sub(job.Accepted).Round(time.Millisecond))
	return entry, nil
}

func (c *Coordinator) execute(ctx context.Context, job *Job) (*database.Entry, *Error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(StageIntake, KindCanceled, err)
	}

	c.setStatus(ctx, job, StatusProbing, nil)
	start := time.Now()
	info, err := c.prober.Probe(ctx, job.Request.RawPath)
	metrics.PipelineStageDuration.WithLabelValues(StageProbe).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, classify(StageProbe, KindProbeFailed, err)
	}
	job.log.Debug("Probed: %ds %s %dx%d audio=%v", info.DurationSeconds, info.VideoCodec, info.Width, info.Height, info.HasAudio)

	if c.maxDuration > 0 && info.DurationSeconds > int64(c.maxDuration/time.Second) {
		return nil, invalidInput(StageProbe, "duration %ds exceeds limit of %v", info.DurationSeconds, c.maxDuration)
	}

	c.setStatus(ctx, job, StatusEncoding, nil)
	if err := c.encode(ctx, job, info); err != nil {
		return nil, err
	}

	// Once the assets are complete the catalog write is not abandoned
	// halfway because the caller went away.
	if err := ctx.Err(); err != nil {
		return nil, classify(StagePublish, KindCanceled, err)
	}
	c.setStatus(ctx, job, StatusPublishing, nil)

	entry := &database.Entry{
		ID:            job.ID,
		Title:         job.Request.Title,
		Description:   job.Request.Description,
		UploaderID:    job.Request.UploaderID,
		DurationSec:   info.DurationSeconds,
		HLSPath:       job.Paths.ManifestRel(),
		ThumbnailPath: job.Paths.ThumbnailRel(),
		IsPublic:      true,
		CreatedAt:     c.now(),
	}

	start = time.Now()
	err = c.catalog.Publish(context.WithoutCancel(ctx), entry)
	metrics.PipelineStageDuration.WithLabelValues(StagePublish).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &Error{Kind: KindPublishFailed, Stage: StagePublish, Err: err}
	}
	return entry, nil
}

// encode runs the segmenter and thumbnailer side by side and waits for both.
// The first failure cancels the other branch.
func (c *Coordinator) encode(ctx context.Context, job *Job, info probe.Result) *Error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		start := time.Now()
		manifest, err := c.segmenter.Segment(gctx, job.Request.RawPath, job.Paths.SegmentDir)
		metrics.PipelineStageDuration.WithLabelValues(StageEncode).Observe(time.Since(start).Seconds())
		if err != nil {
			return classify(StageEncode, KindEncodeFailed, err)
		}
		job.log.Debug("Segmented into %d segments", len(manifest.Segments))
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		err := c.thumbnailer.Generate(gctx, job.Request.RawPath, job.Paths.Thumbnail, thumbnailSeek(info.DurationSeconds))
		metrics.PipelineStageDuration.WithLabelValues(StageThumbnail).Observe(time.Since(start).Seconds())
		if err != nil {
			return classify(StageThumbnail, KindThumbnailFailed, err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			return perr
		}
		return classify(StageEncode, KindEncodeFailed, err)
	}
	return nil
}

// thumbnailSeek points at the middle of the video.
func thumbnailSeek(durationSec int64) time.Duration {
	if durationSec <= 1 {
		return 0
	}
	return time.Duration(durationSec) * time.Second / 2
}

// fail removes everything the job produced and reports it failed. Cleanup
// problems are logged and never replace perr.
func (c *Coordinator) fail(ctx context.Context, job *Job, perr *Error) {
	perr.JobID = job.ID
	switch perr.Kind {
	case KindCanceled:
		job.log.Warn("Canceled during %s: %v", perr.Stage, perr.Err)
	default:
		job.log.Error("Failed during %s (%s): %v", perr.Stage, perr.Kind, perr.Err)
	}

	start := time.Now()
	if err := c.layout.Remove(job.Paths); err != nil {
		job.log.Warn("Cleanup failed: %v", err)
	}
	c.removeRaw(job.log, job.Request.RawPath)
	metrics.PipelineStageDuration.WithLabelValues("cleanup").Observe(time.Since(start).Seconds())

	c.setStatus(ctx, job, StatusFailed, perr)
	c.publishEvent(ctx, job, events.Failed(job.ID, string(perr.Kind), perr.Stage))
	c.recordOutcome(perr)
}

func (c *Coordinator) removeRaw(log *logging.JobLogger, path string) {
	if path == "" {
		return
	}
	if err := filesystem.RemoveWithRetry(path, filesystem.DefaultRetryConfig()); err != nil {
		metrics.PipelineCleanupErrors.WithLabelValues("raw").Inc()
		if log != nil {
			log.Warn("Cleanup failed: raw upload: %v", err)
		} else {
			logging.Warn("Cleanup failed: raw upload %s: %v", path, err)
		}
	}
}

func (c *Coordinator) setStatus(ctx context.Context, job *Job, status Status, perr *Error) {
	job.status = status
	job.log.Debug("Status %s", status)
	if c.tracker == nil {
		return
	}

	rec := jobstatus.Record{ID: job.ID, Status: string(status)}
	if perr != nil {
		rec.Kind = string(perr.Kind)
		rec.Stage = perr.Stage
		rec.Message = perr.Kind.Message()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := c.tracker.Set(ctx, rec); err != nil {
		job.log.Warn("Failed to record status %s: %v", status, err)
	}
}

func (c *Coordinator) publishEvent(ctx context.Context, job *Job, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := c.events.Publish(ctx, ev); err != nil {
		job.log.Warn("Failed to publish %s: %v", ev.Type, err)
	}
}

func (c *Coordinator) recordOutcome(perr *Error) {
	if perr == nil {
		metrics.PipelineJobsTotal.WithLabelValues(string(StatusDone)).Inc()
		return
	}
	metrics.PipelineJobsTotal.WithLabelValues(string(StatusFailed)).Inc()
	metrics.PipelineFailuresTotal.WithLabelValues(string(perr.Kind)).Inc()
}
