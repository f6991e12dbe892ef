// Package main provides the entry point for the Media Converter API server.
//
// Media Converter turns video files into a chosen container or codec while
// keeping the output under a byte budget. Video kinds (MP4, MOV, MKV, HEVC)
// are encoded at a computed bitrate, on NVENC when the GPU offers it and
// with a software two-pass encode otherwise. Animated kinds (WebP, GIF) are
// searched over a fixed ladder of quality tiers until one fits.
//
// # Application Lifecycle
//
//  1. Configuration Loading: reads .env and environment variables, checks directories
//  2. Database Initialization: opens the SQLite job history, fails jobs a previous
//     process left running
//  3. Encoder Initialization: checks that ffmpeg runs; hardware encoders are
//     probed lazily on first use
//  4. Dispatch Backend:
//     - local: jobs run in this process, bounded by MAX_CONCURRENT_JOBS
//     - redis: jobs are enqueued for cmd/worker and progress is read back from
//     Redis pub/sub
//  5. HTTP Server Setup: routes, auth, logging, metrics and compression middleware
//  6. Graceful Shutdown: handles SIGINT/SIGTERM
//
// # HTTP Server
//
// The application runs two HTTP servers:
//
//  1. Main Server (default port 8080):
//     - POST /api/jobs, GET /api/jobs, GET and DELETE /api/jobs/{id}
//     - GET /api/jobs/{id}/events: Server-Sent Events progress stream
//     - GET /api/capabilities, /api/media/info, /api/media/size
//     - /health, /healthz, /livez, /readyz, /version (no auth)
//
//  2. Metrics Server (default port 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//     - Health check endpoint (/health)
//
// # Environment Variables
//
//   - FFMPEG_PATH, FFPROBE_PATH: encoder binaries (default: from PATH)
//   - WORK_DIR: pass statistics and chapter sidecars
//   - OUTPUT_DIR: where outputs are written (default: next to the input)
//   - DATABASE_DIR: directory for the SQLite job history (default: /database)
//   - PORT, METRICS_PORT, METRICS_ENABLED
//   - MAX_CONCURRENT_JOBS: local job slots (default: CPU count, at most 4)
//   - JOB_HISTORY_LIMIT: finished jobs kept in the database (default: 100)
//   - QUEUE_BACKEND: "local" or "redis"; REDIS_ADDR, QUEUE_NAME, PROGRESS_CHANNEL_PREFIX
//   - API_TOKEN_HASH: bcrypt hash of the bearer token (see convertctl hash-token)
//   - LOG_LEVEL, LOG_HEALTH_CHECKS, LOG_FILE, LOG_FILE_MAX_SIZE,
//     LOG_FILE_MAX_BACKUPS, LOG_FILE_MAX_AGE, LOG_FILE_COMPRESS
//
// # Graceful Shutdown
//
//  1. Stop metrics collector
//  2. Cancel running local jobs and wait for their results to be recorded
//  3. Stop the Redis progress bridge (redis backend)
//  4. Close open event streams
//  5. Shutdown metrics server and main HTTP server (30s timeout)
//  6. Close the database
//
// # Related Packages
//
//   - [media-converter/internal/converter]: strategy selection and encode orchestration
//   - [media-converter/internal/jobs]: submission, dispatch and result recording
//   - [media-converter/internal/events]: progress fan-out and Redis bridge
//   - [media-converter/internal/handlers]: HTTP request handlers
//   - [media-converter/internal/startup]: configuration and initialization
package main
