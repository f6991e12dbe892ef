// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging for the API server and the queue worker.
//
// # Configuration
//
// Configuration is read from environment variables by [LoadConfig] (API
// server) and [LoadWorkerConfig] (asynq worker). An optional .env file in the
// working directory is loaded first; real environment variables take
// precedence.
//
//   - FFMPEG_PATH, FFPROBE_PATH: encoder and prober binaries (default: ffmpeg, ffprobe)
//   - WORK_DIR: scratch space for pass logs and chapter sidecars (default: $TMPDIR/media-converter)
//   - OUTPUT_DIR: where outputs are written (default: next to the input)
//   - DATABASE_DIR: job history database directory (default: /database)
//   - PORT: HTTP API port (default: 8080)
//   - METRICS_PORT, METRICS_ENABLED: Prometheus endpoint (default: 9090, true)
//   - MAX_CONCURRENT_JOBS: concurrent conversions (default: CPU count, at most 4)
//   - QUEUE_BACKEND: "local" or "redis" (default: local)
//   - QUEUE_NAME: asynq queue for conversion tasks (default: default)
//   - REDIS_ADDR: Redis for asynq and progress pub/sub (default: localhost:6379)
//   - PROGRESS_CHANNEL_PREFIX: pub/sub channel prefix (default: conversion-progress)
//   - API_TOKEN_HASH: bcrypt hash of the API bearer token; unset disables auth
//   - JOB_HISTORY_LIMIT: finished jobs kept in the database (default: 100)
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: log health probe requests (default: true)
//   - LOG_FILE, LOG_FILE_MAX_SIZE, LOG_FILE_MAX_BACKUPS, LOG_FILE_MAX_AGE,
//     LOG_FILE_COMPRESS: optional rotating log file
//
// # Directory Setup
//
//   - Database directory: required and must be writable
//   - Work directory: required for whichever process runs ffmpeg
//   - Output directory: created and checked only when OUTPUT_DIR is set
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogDatabaseInit]: database timing and interrupted job recovery
//   - [LogEncoderInit]: ffmpeg availability
//   - [LogQueueInit]: dispatch backend
//   - [LogHTTPRoutes]: registered routes (debug level)
//   - [LogServerStarted], [LogShutdownInitiated], [LogShutdownComplete]
package startup
