package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-converter/internal/events"
	"media-converter/internal/ffmpeg"
	"media-converter/internal/logging"
	"media-converter/internal/workers"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
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

// Queue backends selectable through QUEUE_BACKEND.
const (
	BackendLocal = "local"
	BackendRedis = "redis"
)

// DefaultMaxJobs caps the CPU-derived job count when MAX_CONCURRENT_JOBS is unset.
const DefaultMaxJobs = 4

// Config holds all application configuration
type Config struct {
	FFmpegPath  string
	FFprobePath string
	WorkDir     string
	// OutputDir is empty when outputs are written next to their inputs.
	OutputDir   string
	DatabaseDir string
	Port        string
	MetricsPort string

	MetricsEnabled  bool
	LogHealthChecks bool

	MaxConcurrentJobs int
	JobHistoryLimit   int

	QueueBackend          string
	QueueName             string
	RedisAddr             string
	ProgressChannelPrefix string

	// APITokenHash is a bcrypt hash; empty disables API authentication.
	APITokenHash string

	// LogFile is the zero value when file logging is off.
	LogFile logging.FileOptions

	// Derived paths
	DatabasePath string
}

// UsesRedis reports whether jobs are handed to asynq workers.
func (c *Config) UsesRedis() bool {
	return c.QueueBackend == BackendRedis
}

// Volumes names the configured directories for filesystem metric labels.
// Directories that are not configured are left empty.
func (c *Config) Volumes() map[string]string {
	return map[string]string{
		"work":     c.WorkDir,
		"output":   c.OutputDir,
		"database": c.DatabaseDir,
	}
}

// AuthEnabled reports whether /api routes require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.APITokenHash != ""
}

// LoadConfig loads and validates the API server configuration from
// environment variables. A .env file in the working directory is read first
// when present; variables already set in the environment win.
func LoadConfig() (*Config, error) {
	loadDotEnv()
	printBanner("API SERVER")
	logSystemInfo()

	cfg, err := loadCommon()
	if err != nil {
		return nil, err
	}

	databaseDir, err := filepath.Abs(getEnv("DATABASE_DIR", "/database"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cfg.DatabaseDir = databaseDir
	cfg.DatabasePath = filepath.Join(databaseDir, "jobs.db")
	cfg.Port = getEnv("PORT", "8080")
	cfg.MetricsPort = getEnv("METRICS_PORT", "9090")
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)
	cfg.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", true)
	cfg.JobHistoryLimit = getEnvInt("JOB_HISTORY_LIMIT", 100)
	cfg.APITokenHash = strings.TrimSpace(os.Getenv("API_TOKEN_HASH"))

	logging.Info("  DATABASE_DIR:            %s", cfg.DatabaseDir)
	logging.Info("  PORT:                    %s", cfg.Port)
	logging.Info("  METRICS_PORT:            %s", cfg.MetricsPort)
	logging.Info("  METRICS_ENABLED:         %v", cfg.MetricsEnabled)
	logging.Info("  JOB_HISTORY_LIMIT:       %d", cfg.JobHistoryLimit)
	logging.Info("  LOG_HEALTH_CHECKS:       %v", cfg.LogHealthChecks)
	logging.Info("  API_TOKEN_HASH:          %s", setString(cfg.AuthEnabled()))

	if cfg.AuthEnabled() {
		if _, err := bcrypt.Cost([]byte(cfg.APITokenHash)); err != nil {
			return nil, fmt.Errorf("API_TOKEN_HASH is not a bcrypt hash: %w", err)
		}
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := ensureDirectory(cfg.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	// In redis mode the workers own the work and output directories.
	if !cfg.UsesRedis() {
		if err := setupWorkDirs(cfg); err != nil {
			return nil, err
		}
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	logging.Info("    Database:       ENABLED (required)")
	logging.Info("    Redis queue:    %s", enabledString(cfg.UsesRedis()))
	logging.Info("    Authentication: %s", enabledString(cfg.AuthEnabled()))
	logging.Info("    Metrics:        %s", enabledString(cfg.MetricsEnabled))

	return cfg, nil
}

// LoadWorkerConfig loads the configuration for a queue worker process. It
// shares the encoder, directory and Redis settings with LoadConfig but has no
// database or HTTP listener.
func LoadWorkerConfig() (*Config, error) {
	loadDotEnv()
	printBanner("QUEUE WORKER")
	logSystemInfo()

	cfg, err := loadCommon()
	if err != nil {
		return nil, err
	}
	cfg.QueueBackend = BackendRedis

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	if err := setupWorkDirs(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadCommon() (*Config, error) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	cfg := &Config{
		FFmpegPath:            getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:           getEnv("FFPROBE_PATH", "ffprobe"),
		WorkDir:               getEnv("WORK_DIR", filepath.Join(os.TempDir(), "media-converter")),
		OutputDir:             strings.TrimSpace(os.Getenv("OUTPUT_DIR")),
		MaxConcurrentJobs:     workers.ForCPU(DefaultMaxJobs),
		QueueBackend:          strings.ToLower(getEnv("QUEUE_BACKEND", BackendLocal)),
		QueueName:             getEnv("QUEUE_NAME", "default"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		ProgressChannelPrefix: getEnv("PROGRESS_CHANNEL_PREFIX", events.DefaultChannelPrefix),
		LogFile:               loadLogFileOptions(),
	}

	logging.Info("  FFMPEG_PATH:             %s", cfg.FFmpegPath)
	logging.Info("  FFPROBE_PATH:            %s", cfg.FFprobePath)
	logging.Info("  WORK_DIR:                %s", cfg.WorkDir)
	if cfg.OutputDir == "" {
		logging.Info("  OUTPUT_DIR:              (next to input)")
	} else {
		logging.Info("  OUTPUT_DIR:              %s", cfg.OutputDir)
	}
	logging.Info("  MAX_CONCURRENT_JOBS:     %d", cfg.MaxConcurrentJobs)
	logging.Info("  QUEUE_BACKEND:           %s", cfg.QueueBackend)
	if cfg.QueueBackend == BackendRedis {
		logging.Info("  QUEUE_NAME:              %s", cfg.QueueName)
		logging.Info("  REDIS_ADDR:              %s", cfg.RedisAddr)
		logging.Info("  PROGRESS_CHANNEL_PREFIX: %s", cfg.ProgressChannelPrefix)
	}
	if cfg.LogFile.Path != "" {
		logging.Info("  LOG_FILE:                %s", cfg.LogFile.Path)
	}
	logging.Info("  LOG_LEVEL:               %s", logging.GetLevel())

	if cfg.QueueBackend != BackendLocal && cfg.QueueBackend != BackendRedis {
		return nil, fmt.Errorf("invalid QUEUE_BACKEND %q (want %q or %q)", cfg.QueueBackend, BackendLocal, BackendRedis)
	}
	return cfg, nil
}

func loadLogFileOptions() logging.FileOptions {
	path := strings.TrimSpace(os.Getenv("LOG_FILE"))
	if path == "" {
		return logging.FileOptions{}
	}
	return logging.FileOptions{
		Path:       path,
		MaxSizeMB:  getEnvInt("LOG_FILE_MAX_SIZE", 100),
		MaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 3),
		MaxAgeDays: getEnvInt("LOG_FILE_MAX_AGE", 28),
		Compress:   getEnvBool("LOG_FILE_COMPRESS", false),
	}
}

func setupWorkDirs(cfg *Config) error {
	workDir, err := filepath.Abs(cfg.WorkDir)
	if err != nil {
		return fmt.Errorf("failed to resolve work directory path: %w", err)
	}
	cfg.WorkDir = workDir
	logging.Info("  Work directory (absolute): %s", workDir)

	if err := ensureDirectory(workDir, "work"); err != nil {
		return fmt.Errorf("work directory error: %w", err)
	}
	if err := testWriteAccess(workDir); err != nil {
		return fmt.Errorf("work directory is not writable (required for encoder side files): %w", err)
	}
	logging.Info("  [OK] Work directory is writable")

	if cfg.OutputDir == "" {
		return nil
	}
	outputDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to resolve output directory path: %w", err)
	}
	cfg.OutputDir = outputDir
	logging.Info("  Output directory (absolute): %s", outputDir)

	if err := ensureDirectory(outputDir, "output"); err != nil {
		return fmt.Errorf("output directory error: %w", err)
	}
	if err := testWriteAccess(outputDir); err != nil {
		return fmt.Errorf("output directory is not writable: %w", err)
	}
	logging.Info("  [OK] Output directory is writable")
	return nil
}

func loadDotEnv() {
	err := godotenv.Load()
	switch {
	case err == nil:
		logging.Debug("Loaded environment from .env")
	case !errors.Is(err, os.ErrNotExist):
		logging.Warn("Failed to read .env: %v", err)
	}
}

func setString(set bool) string {
	if set {
		return "(set)"
	}
	return "(not set)"
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration, interrupted int64) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
	if interrupted > 0 {
		logging.Warn("  Marked %d interrupted job(s) as failed", interrupted)
	}
}

// Versioner reports the version banner of an encoder binary.
type Versioner interface {
	Version(ctx context.Context) (string, error)
}

var _ Versioner = (*ffmpeg.Runner)(nil)

// LogEncoderInit checks that ffmpeg can be executed and logs its version.
// Conversions fail individually when it cannot, so this only warns.
func LogEncoderInit(ctx context.Context, enc Versioner) bool {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("ENCODER INITIALIZATION")
	logging.Info("------------------------------------------------------------")

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	version, err := enc.Version(ctx)
	if err != nil {
		logging.Warn("  FFmpeg check failed: %v", err)
		logging.Warn("  Conversions will fail until ffmpeg is available")
		return false
	}
	logging.Info("  [OK] FFmpeg is available")
	logging.Debug("  FFmpeg version: %s", version)
	return true
}

// LogQueueInit logs the selected job dispatch backend.
func LogQueueInit(cfg *Config) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("QUEUE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	if cfg.UsesRedis() {
		logging.Info("  Backend: redis (%s, queue %q)", cfg.RedisAddr, cfg.QueueName)
		logging.Info("  Progress channels: %s:*", cfg.ProgressChannelPrefix)
		return
	}
	logging.Info("  Backend: local (%d concurrent job(s))", cfg.MaxConcurrentJobs)
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
			methods = []string{"*"}
		}

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   route.GetName(),
			})
		}
		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes at debug level
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
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

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}
			for _, route := range groups[group] {
				logging.Debug("    %-6s %s", route.Method, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	first := parts[0]

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
	logging.Info("    API:           http://0.0.0.0:%s/api", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
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

func printBanner(role string) {
	banner := `
------------------------------------------------------------
   __  ___       ___        _____                          __
  /  |/  /__ ___/ (_)__ _  / ___/__  ___ _  _____ ____/ /____ ____
 / /|_/ / -_) _  / / _ '/ / /__/ _ \/ _ \ |/ / -_) __/ __/ -_) __/
/_/  /_/\__/\_,_/_/\_,_/  \___/\___/_//_/___/\__/_/  \__/\__/_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Role:       %s", role)
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
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
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

func getEnvInt(key string, defaultValue int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
