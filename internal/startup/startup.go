package startup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"clipstream/internal/logging"
	"clipstream/internal/workers"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LogStaticFiles  bool
	LogHealthChecks bool

	AssetsDir   string
	UploadDir   string
	DatabaseDir string

	// Catalog backend
	CatalogDriver string
	DatabaseURL   string

	// Optional backends; empty selects the in-process default
	RedisURL     string
	AMQPURL      string
	AMQPExchange string

	JWTSecret []byte

	FFmpegPath       string
	FFprobePath      string
	ProbeTimeout     time.Duration
	EncodeTimeout    time.Duration
	ThumbnailTimeout time.Duration
	ThumbnailEngine  string

	MaxUploadSize int64
	MaxDuration   time.Duration

	PipelineWorkers int
	PipelineQueue   int

	ReconcileEnabled  bool
	ReconcileInterval time.Duration
	ReconcileGrace    time.Duration

	// Per-write timeout for asset responses
	StreamWriteTimeout time.Duration

	// Derived paths
	DatabasePath string
}

// Thumbnail engines.
const (
	EngineImaging = "imaging"
	EngineVips    = "vips"
)

const (
	defaultMaxUploadSize = 2 << 30
	defaultPipelineQueue = 32
)

// LoadConfig loads and validates configuration from environment variables.
// A .env file in the working directory is applied first if present.
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	if err := godotenv.Load(); err == nil {
		logging.Info("Loaded environment from .env")
	}

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config, err := configFromEnv()
	if err != nil {
		return nil, err
	}
	logConfig(config)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := setupDirectories(config); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Catalog:       %s", config.CatalogDriver)
	logging.Info("    Job status:    %s", backendString(config.RedisURL, "redis", "memory"))
	logging.Info("    Events:        %s", backendString(config.AMQPURL, "amqp", "disabled"))
	logging.Info("    Thumbnails:    %s", config.ThumbnailEngine)
	logging.Info("    Metrics:       %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// configFromEnv reads and validates every setting without touching the
// filesystem.
func configFromEnv() (*Config, error) {
	config := &Config{
		Port:            getEnv("PORT", "4000"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
		LogStaticFiles:  getEnvBool("LOG_STATIC_FILES", false),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),

		AssetsDir:   getEnv("ASSETS_DIR", "./assets"),
		UploadDir:   getEnv("UPLOAD_DIR", "./uploads"),
		DatabaseDir: getEnv("DATABASE_DIR", "./data"),

		CatalogDriver: strings.ToLower(getEnv("CATALOG_DRIVER", "sqlite")),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		RedisURL:     os.Getenv("REDIS_URL"),
		AMQPURL:      os.Getenv("AMQP_URL"),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "catalog.events"),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),

		FFmpegPath:       getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      getEnv("FFPROBE_PATH", "ffprobe"),
		ProbeTimeout:     getEnvDuration("PROBE_TIMEOUT", 30*time.Second),
		EncodeTimeout:    getEnvDuration("ENCODE_TIMEOUT", 2*time.Hour),
		ThumbnailTimeout: getEnvDuration("THUMBNAIL_TIMEOUT", 60*time.Second),
		ThumbnailEngine:  strings.ToLower(getEnv("THUMBNAIL_ENGINE", EngineImaging)),

		MaxUploadSize: getEnvInt64("MAX_UPLOAD_SIZE", defaultMaxUploadSize),
		MaxDuration:   getEnvDuration("MAX_DURATION", 4*time.Hour),

		PipelineWorkers: workers.ForPipeline(),
		PipelineQueue:   int(getEnvInt64("PIPELINE_QUEUE", defaultPipelineQueue)),

		ReconcileEnabled:  getEnvBool("RECONCILE_ENABLED", true),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", time.Hour),

		StreamWriteTimeout: getEnvDuration("STREAM_WRITE_TIMEOUT", 30*time.Second),
	}

	// Artifacts of a job that is still running must never look orphaned.
	longestJob := config.ProbeTimeout + config.EncodeTimeout + config.ThumbnailTimeout
	config.ReconcileGrace = getEnvDuration("RECONCILE_GRACE", longestJob+time.Hour)
	if config.ReconcileGrace <= longestJob {
		logging.Warn("  RECONCILE_GRACE %v does not exceed the longest job (%v), using %v",
			config.ReconcileGrace, longestJob, longestJob+time.Hour)
		config.ReconcileGrace = longestJob + time.Hour
	}

	if len(config.JWTSecret) == 0 {
		return nil, errors.New("JWT_SECRET is required")
	}

	switch config.CatalogDriver {
	case "sqlite":
	case "postgres":
		if config.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when CATALOG_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown CATALOG_DRIVER %q", config.CatalogDriver)
	}

	switch config.ThumbnailEngine {
	case EngineImaging, EngineVips:
	default:
		logging.Warn("  Unknown THUMBNAIL_ENGINE %q, using %s", config.ThumbnailEngine, EngineImaging)
		config.ThumbnailEngine = EngineImaging
	}

	if config.PipelineQueue < 0 {
		config.PipelineQueue = defaultPipelineQueue
	}

	return config, nil
}

func logConfig(config *Config) {
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  ASSETS_DIR:          %s", config.AssetsDir)
	logging.Info("  UPLOAD_DIR:          %s", config.UploadDir)
	logging.Info("  DATABASE_DIR:        %s", config.DatabaseDir)
	logging.Info("  CATALOG_DRIVER:      %s", config.CatalogDriver)
	logging.Info("  REDIS_URL:           %s", redact(config.RedisURL))
	logging.Info("  AMQP_URL:            %s", redact(config.AMQPURL))
	logging.Info("  FFMPEG_PATH:         %s", config.FFmpegPath)
	logging.Info("  FFPROBE_PATH:        %s", config.FFprobePath)
	logging.Info("  PROBE_TIMEOUT:       %v", config.ProbeTimeout)
	logging.Info("  ENCODE_TIMEOUT:      %v", config.EncodeTimeout)
	logging.Info("  THUMBNAIL_TIMEOUT:   %v", config.ThumbnailTimeout)
	logging.Info("  MAX_UPLOAD_SIZE:     %d", config.MaxUploadSize)
	logging.Info("  MAX_DURATION:        %v", config.MaxDuration)
	logging.Info("  PIPELINE_WORKERS:    %d", config.PipelineWorkers)
	logging.Info("  PIPELINE_QUEUE:      %d", config.PipelineQueue)
	logging.Info("  RECONCILE_ENABLED:   %v", config.ReconcileEnabled)
	logging.Info("  RECONCILE_INTERVAL:  %v", config.ReconcileInterval)
	logging.Info("  RECONCILE_GRACE:     %v", config.ReconcileGrace)
	logging.Info("  STREAM_WRITE_TIMEOUT: %v", config.StreamWriteTimeout)
	logging.Info("  LOG_STATIC_FILES:    %v", config.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
}

func setupDirectories(config *Config) error {
	dirs := []struct {
		path *string
		name string
	}{
		{&config.AssetsDir, "assets"},
		{&config.UploadDir, "upload"},
		{&config.DatabaseDir, "database"},
	}

	for _, d := range dirs {
		abs, err := filepath.Abs(*d.path)
		if err != nil {
			return fmt.Errorf("failed to resolve %s directory path: %w", d.name, err)
		}
		*d.path = abs
		logging.Info("  %s directory (absolute): %s", d.name, abs)

		// The database directory only matters for sqlite.
		if d.name == "database" && config.CatalogDriver != "sqlite" {
			continue
		}
		if err := ensureDirectory(abs, d.name); err != nil {
			return fmt.Errorf("%s directory error: %w", d.name, err)
		}
		if err := testWriteAccess(abs); err != nil {
			return fmt.Errorf("%s directory is not writable: %w", d.name, err)
		}
		logging.Info("  [OK] %s directory is writable", d.name)
	}

	config.DatabasePath = filepath.Join(config.DatabaseDir, "catalog.db")
	return nil
}

// redact strips credentials from a connection URL for logging.
func redact(raw string) string {
	if raw == "" {
		return "(unset)"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "(invalid)"
	}
	return u.Redacted()
}

func backendString(target, set, unset string) string {
	if target != "" {
		return set
	}
	return unset
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs catalog initialization
func LogDatabaseInit(driver string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CATALOG INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] %s catalog initialized in %v", driver, duration)
}

// LogToolsInit checks that ffmpeg and ffprobe can be started. Missing tools
// are logged, not fatal: every upload will fail with a probe error instead.
func LogToolsInit(ffmpegPath, ffprobePath string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEDIA TOOLS")
	logging.Info("------------------------------------------------------------")

	for _, tool := range []string{ffprobePath, ffmpegPath} {
		if err := checkTool(tool); err != nil {
			logging.Warn("  %s check failed: %v", tool, err)
			logging.Warn("  Uploads will fail until it is installed")
			continue
		}
		logging.Info("  [OK] %s is available", tool)
	}
}

// LogPipelineInit logs the ingestion pool size
func LogPipelineInit(workers, queue int) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PIPELINE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Workers:        %d", workers)
	logging.Info("  Queue capacity: %d", queue)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		// Group routes by prefix for cleaner output
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		// Sort group keys
		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		// Print routes by group
		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logStaticFiles {
		logging.Info("    Static file logging: ON")
	} else {
		logging.Info("    Static file logging: OFF (set LOG_STATIC_FILES=true to enable)")
	}
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	// Remove leading slash
	path = strings.TrimPrefix(path, "/")

	// Get first segment
	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	// Special handling for API routes
	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Local access:")
	logging.Info("    Application:   http://localhost:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://localhost:%s/metrics", config.MetricsPort)
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
      _ _           _
  ___| (_)_ __  ___| |_ _ __ ___  __ _ _ __ ___
 / __| | | '_ \/ __| __| '__/ _ \/ _' | '_ ' _ \
| (__| | | |_) \__ \ |_| | |  __/ (_| | | | | | |
 \___|_|_| .__/|___/\__|_|  \___|\__,_|_| |_| |_|
         |_|
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")

	if name == "assets" && logging.IsDebugEnabled() {
		entries, err := os.ReadDir(path)
		if err == nil {
			fileCount := 0
			dirCount := 0
			for _, e := range entries {
				if e.IsDir() {
					dirCount++
				} else {
					fileCount++
				}
			}
			logging.Debug("    Contents: %d files, %d directories (top level)", fileCount, dirCount)
		}
	}

	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func checkTool(name string) error {
	path, err := exec.LookPath(name)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", name)
	}
	logging.Debug("  %s path: %s", name, path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get %s version: %w", name, err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  %s version: %s", name, strings.TrimSpace(lines[0]))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		logging.Warn("Invalid duration for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid integer for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
