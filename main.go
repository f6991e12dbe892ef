package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"media-converter/internal/capability"
	"media-converter/internal/converter"
	"media-converter/internal/database"
	"media-converter/internal/events"
	"media-converter/internal/ffmpeg"
	"media-converter/internal/filesystem"
	"media-converter/internal/handlers"
	"media-converter/internal/jobs"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
	"media-converter/internal/middleware"
	"media-converter/internal/startup"
)

const (
	shutdownTimeout   = 30 * time.Second
	collectorInterval = time.Minute
	// eventRetention is how many finished jobs keep their last event in memory
	// for late SSE subscribers.
	eventRetention = 256
)

// services holds everything the shutdown sequence has to stop.
type services struct {
	srv        *http.Server
	metricsSrv *http.Server
	manager    *jobs.Manager
	hub        *events.Hub
	collector  *metrics.Collector
	db         *database.Database
	stopBridge context.CancelFunc
	redis      *redis.Client
	bridgeDone <-chan struct{}
}

func main() {
	startTime := time.Now()

	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	if config.LogFile.Path != "" {
		if err := logging.EnableFile(config.LogFile); err != nil {
			startup.LogFatal("Failed to open log file: %v", err)
		}
	}

	ctx := context.Background()

	buildInfo := startup.GetBuildInfo()
	metrics.AppInfo.WithLabelValues(buildInfo.Version, buildInfo.Commit, buildInfo.GoVersion).Set(1)
	metrics.InitializeMetrics()

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(config.Volumes()))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}

	// Jobs left running by a previous local process can never finish. Queue
	// workers outlive the API server, so their jobs are left alone.
	var interrupted int64
	if !config.UsesRedis() {
		interrupted, err = db.FailInterrupted(ctx)
		if err != nil {
			logging.Warn("Failed to mark interrupted jobs: %v", err)
		}
	}
	startup.LogDatabaseInit(time.Since(dbStart), interrupted)

	// Initialize encoder stack
	runner := ffmpeg.NewRunner(config.FFmpegPath)
	prober := ffmpeg.NewProber(config.FFprobePath)
	startup.LogEncoderInit(ctx, runner)
	caps := capability.New(runner.HasEncoder)

	hub := events.NewHub(eventRetention)
	recorder := jobs.NewRecorder(db, hub, config.JobHistoryLimit)

	svc := &services{db: db, hub: hub}

	// Initialize dispatch backend
	startup.LogQueueInit(config)
	var dispatcher jobs.Dispatcher
	if config.UsesRedis() {
		dispatcher = jobs.NewQueueDispatcher(asynq.RedisClientOpt{Addr: config.RedisAddr}, config.QueueName)
		svc.redis = redis.NewClient(&redis.Options{Addr: config.RedisAddr})
		svc.bridgeDone, svc.stopBridge = startBridge(svc.redis, config.ProgressChannelPrefix, recorder)
	} else {
		conv := converter.New(runner, prober, caps, converter.Config{
			WorkDir:   config.WorkDir,
			OutputDir: config.OutputDir,
			Observer:  metrics.NewConversionObserver(),
		})
		dispatcher = jobs.NewLocalDispatcher(jobs.NewRunner(conv, recorder), config.MaxConcurrentJobs)
	}
	svc.manager = jobs.NewManager(db, dispatcher)

	// Initialize handlers
	h := handlers.New(handlers.Deps{
		Jobs:         svc.manager,
		Events:       hub,
		Prober:       prober,
		Capabilities: caps,
		Store:        db,
		Stats:        db,
		TokenHash:    config.APITokenHash,
		QueueBackend: config.QueueBackend,
	})

	router := setupRouter(h)
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	svc.srv = newServer(":"+config.Port, buildHandler(router, config))

	if config.MetricsEnabled {
		svc.metricsSrv = newMetricsServer(":"+config.MetricsPort, h.MetricsHandler())
		go func() {
			if err := svc.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	svc.collector = metrics.NewCollector(db, caps, collectorInterval)
	svc.collector.Start()

	// Start graceful shutdown handler
	done := make(chan struct{})
	go func() {
		handleShutdown(svc)
		close(done)
	}()

	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := svc.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		startup.LogFatal("Server error: %v", err)
	}
	<-done
}

// startBridge forwards progress published by queue workers into the local
// recorder and hub until the returned cancel func is called.
func startBridge(client *redis.Client, prefix string, dst events.Publisher) (<-chan struct{}, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	bridge := events.NewBridge(client, prefix, dst)
	go func() {
		defer close(done)
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("Progress bridge stopped: %v", err)
		}
	}()
	return done, cancel
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))
	h.RegisterRoutes(r)
	return r
}

// buildHandler wraps the router in the logging and compression middleware.
func buildHandler(router http.Handler, config *startup.Config) http.Handler {
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	logged := middleware.Logger(loggingConfig)(router)

	return middleware.Compression(middleware.DefaultCompressionConfig())(logged)
}

// newServer creates the API server. WriteTimeout stays at zero so progress
// streams are not cut off; the event writer bounds each event instead.
func newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}
}

func newMetricsServer(addr string, metricsHandler http.Handler) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metricsHandler)
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

func handleShutdown(svc *services) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	shutdown(svc)
	startup.LogShutdownComplete()
}

// shutdown stops every service in dependency order. Nil fields are skipped.
func shutdown(svc *services) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if svc.collector != nil {
		startup.LogShutdownStep("Stopping metrics collector")
		svc.collector.Stop()
		startup.LogShutdownStepComplete("Metrics collector stopped")
	}

	// Running jobs publish their cancelled results before the hub closes.
	if svc.manager != nil {
		startup.LogShutdownStep("Stopping job dispatcher")
		if err := svc.manager.Close(); err != nil {
			logging.Warn("Job dispatcher shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Job dispatcher stopped")
		}
	}

	if svc.stopBridge != nil {
		startup.LogShutdownStep("Stopping progress bridge")
		svc.stopBridge()
		if svc.bridgeDone != nil {
			<-svc.bridgeDone
		}
		if err := svc.redis.Close(); err != nil {
			logging.Warn("Redis client close error: %v", err)
		}
		startup.LogShutdownStepComplete("Progress bridge stopped")
	}

	// Closing the hub ends open event streams so the server can drain.
	if svc.hub != nil {
		svc.hub.Close()
	}

	if svc.metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := svc.metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	if svc.srv != nil {
		startup.LogShutdownStep("Shutting down HTTP server")
		if err := svc.srv.Shutdown(ctx); err != nil {
			logging.Warn("Server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("HTTP server stopped")
		}
	}

	if svc.db != nil {
		startup.LogShutdownStep("Closing database")
		if err := svc.db.Close(); err != nil {
			logging.Warn("Database close error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Database closed")
		}
	}

	if err := logging.Close(); err != nil {
		logging.Warn("Log file close error: %v", err)
	}
}
