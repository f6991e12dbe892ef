package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"media-converter/internal/capability"
	"media-converter/internal/converter"
	"media-converter/internal/events"
	"media-converter/internal/ffmpeg"
	"media-converter/internal/filesystem"
	"media-converter/internal/jobs"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
	"media-converter/internal/startup"
)

// shutdownTimeout bounds how long in-flight conversions get to publish their
// cancelled results after a signal.
const shutdownTimeout = 30 * time.Second

func main() {
	config, err := startup.LoadWorkerConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	if config.LogFile.Path != "" {
		if err := logging.EnableFile(config.LogFile); err != nil {
			startup.LogFatal("Failed to open log file: %v", err)
		}
	}

	metrics.InitializeMetrics()
	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(config.Volumes()))
	filesystem.SetObserver(metrics.NewFilesystemObserver())

	runner := ffmpeg.NewRunner(config.FFmpegPath)
	startup.LogEncoderInit(context.Background(), runner)

	conv := converter.New(runner, ffmpeg.NewProber(config.FFprobePath), capability.New(runner.HasEncoder), converter.Config{
		WorkDir:   config.WorkDir,
		OutputDir: config.OutputDir,
		Observer:  metrics.NewConversionObserver(),
	})

	rdb := redis.NewClient(&redis.Options{Addr: config.RedisAddr})
	publisher := events.NewRedisPublisher(rdb, config.ProgressChannelPrefix)

	startup.LogQueueInit(config)
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: config.RedisAddr}, serverConfig(config))

	if err := srv.Start(newServeMux(jobs.NewRunner(conv, publisher))); err != nil {
		startup.LogFatal("Failed to start queue worker: %v", err)
	}
	logging.Info("Queue worker started (%d slot(s), queue %q)", config.MaxConcurrentJobs, config.QueueName)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	startup.LogShutdownStep("Stopping queue worker")
	srv.Shutdown()
	startup.LogShutdownStepComplete("Queue worker stopped")

	if err := rdb.Close(); err != nil {
		logging.Warn("Redis client close error: %v", err)
	}
	if err := logging.Close(); err != nil {
		logging.Warn("Log file close error: %v", err)
	}
	startup.LogShutdownComplete()
}

func serverConfig(config *startup.Config) asynq.Config {
	queue := config.QueueName
	if queue == "" {
		queue = "default"
	}
	return asynq.Config{
		Concurrency:     config.MaxConcurrentJobs,
		Queues:          map[string]int{queue: 1},
		ShutdownTimeout: shutdownTimeout,
		Logger:          asynqLogger{},
		LogLevel:        asynqLevel(logging.GetLevel()),
	}
}

func newServeMux(runner *jobs.Runner) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(jobs.TaskConvert, jobs.NewTaskHandler(runner))
	return mux
}

// asynqLogger routes asynq's own log lines through the application logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { logging.Debug("asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...interface{})  { logging.Info("asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...interface{})  { logging.Warn("asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...interface{}) { logging.Error("asynq: %s", fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...interface{}) { logging.Fatal("asynq: %s", fmt.Sprint(args...)) }

func asynqLevel(level logging.LogLevel) asynq.LogLevel {
	switch level {
	case logging.LevelDebug:
		return asynq.DebugLevel
	case logging.LevelWarn:
		return asynq.WarnLevel
	case logging.LevelError:
		return asynq.ErrorLevel
	default:
		return asynq.InfoLevel
	}
}
