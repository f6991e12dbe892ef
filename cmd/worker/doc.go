// Command worker consumes conversion tasks from Redis and runs them.
//
// The API server enqueues a "conversion:run" task for every accepted job when
// QUEUE_BACKEND=redis. Each worker process runs up to MAX_CONCURRENT_JOBS of
// them at once and publishes progress and the final result on the Redis
// channel "<PROGRESS_CHANNEL_PREFIX>:<job id>", where the API server picks
// them up for its event streams and job history.
//
// Usage:
//
//	worker
//
// Environment:
//
//	REDIS_ADDR              Redis address (default: localhost:6379)
//	QUEUE_NAME              asynq queue to consume (default: default)
//	PROGRESS_CHANNEL_PREFIX Redis pub/sub channel prefix (default: conversion-progress)
//	MAX_CONCURRENT_JOBS     Concurrent conversions (default: CPU count, at most 4)
//	FFMPEG_PATH, FFPROBE_PATH, WORK_DIR, OUTPUT_DIR
//	LOG_LEVEL, LOG_FILE
//
// Tasks are never retried. A failed conversion is reported as a failed result
// and the task is marked done. On SIGINT or SIGTERM running conversions are
// cancelled and their results published before the process exits.
//
// Input and output paths are resolved on the worker host, so workers need
// the same view of the media filesystem as the API server.
package main
