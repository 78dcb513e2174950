package handlers

import (
	"time"

	"clipstream/internal/database"
	"clipstream/internal/jobstatus"
	"clipstream/internal/pipeline"
	"clipstream/internal/streaming"
)

// ProcessCounter reports running encoder processes.
type ProcessCounter interface {
	Running() int
}

// PressureGauge reports whether new work should be refused, and the heap
// usage as a ratio of the memory limit.
type PressureGauge interface {
	IsPaused() bool
	Usage() float64
}

// Options wires Handlers.
type Options struct {
	Catalog       database.Catalog
	Pool          *pipeline.Pool
	Tracker       jobstatus.Tracker
	Processes     ProcessCounter
	AssetsDir     string
	UploadDir     string
	MaxUploadSize int64
	// Memory refuses uploads while paused. Optional.
	Memory PressureGauge
	// Stream configures asset delivery. Zero uses streaming.DefaultConfig.
	Stream streaming.Config
}

type Handlers struct {
	catalog       database.Catalog
	pool          *pipeline.Pool
	tracker       jobstatus.Tracker
	processes     ProcessCounter
	assetsDir     string
	uploadDir     string
	maxUploadSize int64
	memory        PressureGauge
	stream        streaming.Config
	startTime     time.Time
}

func New(opts Options) *Handlers {
	if opts.Stream == (streaming.Config{}) {
		opts.Stream = streaming.DefaultConfig()
	}
	return &Handlers{
		catalog:       opts.Catalog,
		pool:          opts.Pool,
		tracker:       opts.Tracker,
		processes:     opts.Processes,
		assetsDir:     opts.AssetsDir,
		uploadDir:     opts.UploadDir,
		maxUploadSize: opts.MaxUploadSize,
		memory:        opts.Memory,
		stream:        opts.Stream,
		startTime:     time.Now(),
	}
}
