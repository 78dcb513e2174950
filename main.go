package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clipstream/internal/database"
	"clipstream/internal/events"
	"clipstream/internal/filesystem"
	"clipstream/internal/handlers"
	"clipstream/internal/jobstatus"
	"clipstream/internal/layout"
	"clipstream/internal/logging"
	"clipstream/internal/media"
	"clipstream/internal/memory"
	"clipstream/internal/metrics"
	"clipstream/internal/middleware"
	"clipstream/internal/pipeline"
	"clipstream/internal/probe"
	"clipstream/internal/reconcile"
	"clipstream/internal/startup"
	"clipstream/internal/streaming"
	"clipstream/internal/transcoder"

	"github.com/gorilla/mux"
)

const (
	shutdownTimeout        = 30 * time.Second
	metricsCollectInterval = time.Minute
	tokenLeeway            = 30 * time.Second
)

// components are the long-lived pieces main starts and stops.
type components struct {
	catalog     database.Catalog
	tracker     jobstatus.Tracker
	events      events.Publisher
	transcoder  *transcoder.Transcoder
	pool        *pipeline.Pool
	collector   *metrics.Collector
	monitor     *memory.Monitor
	reconciler  *reconcile.Reconciler
	vipsStarted bool
}

func main() {
	startTime := time.Now()

	// Before the first large allocation.
	memory.ConfigureFromEnv()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)
	metrics.InitializeMetrics(config.CatalogDriver)
	filesystem.SetObserver(metrics.NewFilesystemObserver())
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
		"uploads":  config.UploadDir,
		"assets":   config.AssetsDir,
		"database": config.DatabaseDir,
	}))

	c, err := build(config)
	if err != nil {
		startup.LogFatal("Initialization failed: %v", err)
	}

	h := handlers.New(handlers.Options{
		Catalog:       c.catalog,
		Pool:          c.pool,
		Tracker:       c.tracker,
		Processes:     c.transcoder,
		AssetsDir:     config.AssetsDir,
		UploadDir:     config.UploadDir,
		MaxUploadSize: config.MaxUploadSize,
		Memory:        c.monitor,
		Stream: streaming.Config{
			WriteTimeout: config.StreamWriteTimeout,
			ChunkSize:    streaming.DefaultConfig().ChunkSize,
		},
	})

	identity := middleware.Identity(middleware.IdentityConfig{
		Secret: config.JWTSecret,
		Leeway: tokenLeeway,
	})
	router := setupRouter(h, identity)
	startup.LogHTTPRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(router)
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}

	srv := &http.Server{
		Addr:              ":" + config.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		// Uploads and synchronous ingestion can take as long as an encode.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", h.MetricsHandler())
		metricsSrv = &http.Server{
			Addr:              ":" + config.MetricsPort,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	done := make(chan struct{})
	go handleShutdown(srv, metricsSrv, c, done)

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// build opens the backends and assembles the pipeline.
func build(config *startup.Config) (*components, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := &components{}

	dbStart := time.Now()
	target := config.DatabasePath
	if config.CatalogDriver == database.DriverPostgres {
		target = config.DatabaseURL
	}
	catalog, err := database.Open(ctx, config.CatalogDriver, target)
	if err != nil {
		return nil, err
	}
	c.catalog = catalog
	startup.LogDatabaseInit(config.CatalogDriver, time.Since(dbStart))

	if config.RedisURL != "" {
		tracker, err := jobstatus.NewRedisTracker(ctx, config.RedisURL, jobstatus.DefaultTTL)
		if err != nil {
			return nil, err
		}
		c.tracker = tracker
	} else {
		c.tracker = jobstatus.NewMemoryTracker(jobstatus.DefaultTTL)
	}

	if config.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(config.AMQPURL, config.AMQPExchange)
		if err != nil {
			return nil, err
		}
		c.events = pub
	} else {
		c.events = events.Noop{}
	}

	startup.LogToolsInit(config.FFmpegPath, config.FFprobePath)
	c.transcoder = transcoder.New(transcoder.Options{
		FFmpegPath:    config.FFmpegPath,
		EncodeTimeout: config.EncodeTimeout,
	})
	prober := probe.New(c.transcoder, probe.Options{
		FFprobePath: config.FFprobePath,
		Timeout:     config.ProbeTimeout,
	})

	var resizer media.Resizer = media.ImagingResizer{}
	if config.ThumbnailEngine == startup.EngineVips {
		if err := media.InitVips(); err != nil {
			logging.Warn("libvips unavailable, falling back to imaging: %v", err)
		} else {
			c.vipsStarted = true
			resizer = media.VipsResizer{}
		}
	}
	thumbnailer := media.NewThumbnailer(c.transcoder, media.ThumbnailOptions{
		FFmpegPath: config.FFmpegPath,
		Timeout:    config.ThumbnailTimeout,
		Resizer:    resizer,
	})

	assets := layout.New(config.AssetsDir)
	if err := assets.EnsureShared(); err != nil {
		return nil, err
	}

	coord := pipeline.NewCoordinator(pipeline.Config{
		Layout:      assets,
		Prober:      prober,
		Segmenter:   c.transcoder,
		Thumbnailer: thumbnailer,
		Catalog:     c.catalog,
		Tracker:     c.tracker,
		Events:      c.events,
		MaxDuration: config.MaxDuration,
	})
	c.monitor = memory.NewMonitor(memory.DefaultConfig())
	c.monitor.Start()

	startup.LogPipelineInit(config.PipelineWorkers, config.PipelineQueue)
	c.pool = pipeline.NewPool(coord, config.PipelineWorkers, config.PipelineQueue)
	c.pool.SetGate(c.monitor)
	c.pool.Start()

	c.collector = metrics.NewCollector(c.catalog, config.CatalogDriver, metricsCollectInterval)
	c.collector.Start()

	if config.ReconcileEnabled {
		c.reconciler = reconcile.New(reconcile.Config{
			Layout:    assets,
			UploadDir: config.UploadDir,
			Catalog:   c.catalog,
			Grace:     config.ReconcileGrace,
			Interval:  config.ReconcileInterval,
			Pauser:    c.monitor,
			Jobs:      c.pool,
		})
		c.reconciler.Start()
	}

	return c, nil
}

func setupRouter(h *handlers.Handlers, identity mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	r.HandleFunc("/api/videos", h.ListVideos).Methods("GET")
	r.HandleFunc("/api/videos/{id}", h.GetVideo).Methods("GET")

	authed := r.PathPrefix("/api").Subrouter()
	authed.Use(identity)
	authed.HandleFunc("/videos/upload", h.UploadVideo).Methods("POST")
	authed.HandleFunc("/jobs/{id}", h.GetJob).Methods("GET")

	r.HandleFunc("/static/{path:.*}", h.ServeAsset).Methods("GET", "HEAD")

	return r
}

func handleShutdown(srv, metricsSrv *http.Server, c *components, done chan<- struct{}) {
	defer close(done)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	// Running jobs are canceled and clean up their artifacts.
	startup.LogShutdownStep("Stopping pipeline")
	if err := c.pool.Shutdown(ctx); err != nil {
		logging.Warn("Pipeline shutdown incomplete: %v", err)
	} else {
		startup.LogShutdownStepComplete("Pipeline stopped")
	}

	if c.reconciler != nil {
		c.reconciler.Stop()
	}
	c.monitor.Stop()

	startup.LogShutdownStep("Cleaning up transcoder")
	c.transcoder.Cleanup()
	startup.LogShutdownStepComplete("Transcoder cleanup complete")

	c.collector.Stop()

	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		}
	}

	if err := c.events.Close(); err != nil {
		logging.Warn("Event publisher close error: %v", err)
	}
	if err := c.tracker.Close(); err != nil {
		logging.Warn("Job tracker close error: %v", err)
	}
	if err := c.catalog.Close(); err != nil {
		logging.Warn("Catalog close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Catalog closed")
	}

	if c.vipsStarted {
		media.ShutdownVips()
	}

	startup.LogShutdownComplete()
}
