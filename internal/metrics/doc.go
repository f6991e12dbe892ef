// Package metrics provides Prometheus instrumentation for the media converter.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "media_converter_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Database Metrics
//
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBConnectionsOpen: Gauge of open database connections
//   - DBSizeBytes: Gauge of database file sizes (main, WAL, SHM)
//
// ## Conversion Metrics
//
//   - ConversionsTotal: Counter of finished jobs by kind, strategy and status
//   - ConversionFailures: Counter of failed jobs by reason
//   - ConversionDuration: Histogram of job wall-clock time by kind
//   - ConversionsInProgress: Gauge of running jobs
//   - ConversionsQueued: Gauge of accepted jobs waiting for a slot
//   - OutputSizeRatio: Histogram of produced size over target size
//
// ## FFmpeg Metrics
//
//   - FFmpegInvocationsTotal: Counter of encoder runs by stage (encode, pass1, pass2, tier)
//   - FFmpegInvocationDuration: Histogram of encoder run time by stage
//   - TierAttemptsTotal: Counter of WebP/GIF tier attempts by whether they fit
//   - CapabilityAvailable: Gauge per hardware encoder, 1 when usable
//
// ## Filesystem Metrics
//
// Labeled by operation ("stat", "remove") and volume ("work", "output", ...),
// recorded through [NewFilesystemObserver]:
//
//   - FilesystemRetryAttempts, FilesystemRetrySuccess, FilesystemRetryFailures
//   - FilesystemStaleErrors: ESTALE errors seen
//   - FilesystemRetryDuration: time spent including backoff
//
// ## Event, Queue and Auth Metrics
//
//   - EventSubscribers, EventsPublishedTotal, EventsDroppedTotal
//   - QueueTasksTotal: asynq enqueue/process outcomes
//   - AuthAttemptsTotal: API token checks by status
//   - JobsStored: job history rows by state
//   - AppInfo: Gauge with version, commit, and Go version labels
//
// # Collector
//
// [Collector] periodically copies job history counts from a [StatsProvider]
// and probed capabilities from a [CapabilitySource] into gauges:
//
//	collector := metrics.NewCollector(db, conv.Capabilities(), time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Jobs over budget by more than the 10% tolerance:
//
//	sum(rate(media_converter_output_size_ratio_bucket{le="1.1"}[1h])) by (kind)
//
// Share of video jobs that ran on hardware:
//
//	sum(rate(media_converter_conversions_total{strategy="hardware"}[1h])) /
//	sum(rate(media_converter_conversions_total{strategy=~"hardware|two_pass"}[1h]))
//
// Average tiers tried per animated job:
//
//	sum(rate(media_converter_tier_attempts_total[1h])) by (kind) /
//	sum(rate(media_converter_conversions_total{kind=~"webp|gif"}[1h])) by (kind)
package metrics
