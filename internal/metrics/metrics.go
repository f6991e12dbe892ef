package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Conversion metrics
var (
	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_conversions_total",
			Help: "Total number of finished conversion jobs",
		},
		[]string{"kind", "strategy", "status"},
	)

	ConversionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_conversion_failures_total",
			Help: "Failed conversion jobs by reason",
		},
		[]string{"reason"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_conversion_duration_seconds",
			Help:    "Wall-clock duration of conversion jobs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 3600},
		},
		[]string{"kind"},
	)

	ConversionsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_conversions_in_progress",
			Help: "Number of conversion jobs currently running",
		},
	)

	ConversionsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_conversions_queued",
			Help: "Number of accepted jobs waiting for a free slot",
		},
	)

	// OutputSizeRatio is output bytes divided by the requested byte budget.
	OutputSizeRatio = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_output_size_ratio",
			Help:    "Produced size divided by target size for successful jobs",
			Buckets: []float64{0.25, 0.5, 0.75, 0.9, 0.95, 1, 1.05, 1.1, 1.25, 1.5, 2},
		},
		[]string{"kind"},
	)
)

// FFmpeg metrics
var (
	FFmpegInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_ffmpeg_invocations_total",
			Help: "Total number of ffmpeg invocations by stage",
		},
		[]string{"stage", "status"},
	)

	FFmpegInvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_ffmpeg_invocation_duration_seconds",
			Help:    "Duration of individual ffmpeg invocations in seconds",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	TierAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_tier_attempts_total",
			Help: "Quality tier attempts for size-searched formats",
		},
		[]string{"kind", "fits"},
	)

	CapabilityAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_capability_available",
			Help: "Whether a probed hardware encoder is available (1) or not (0)",
		},
		[]string{"kind", "encoder"},
	)
)

// Filesystem retry metrics, labeled by operation ("stat", "remove") and volume
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_filesystem_retry_attempts_total",
			Help: "Retries after a stale NFS file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_filesystem_retry_failures_total",
			Help: "Operations that still failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_filesystem_stale_errors_total",
			Help: "ESTALE errors seen, including ones later retried",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_converter_filesystem_retry_duration_seconds",
			Help:    "Total time spent in a filesystem operation including retries",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Event stream metrics
var (
	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_converter_event_subscribers",
			Help: "Number of open progress event subscriptions",
		},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_events_published_total",
			Help: "Progress events published by sink",
		},
		[]string{"sink", "status"},
	)

	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_converter_events_dropped_total",
			Help: "Progress events dropped because a subscriber was not keeping up",
		},
	)
)

// Queue metrics
var (
	QueueTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_queue_tasks_total",
			Help: "Conversion tasks handled through the Redis queue",
		},
		[]string{"operation", "status"}, // operation: "enqueue", "process"
	)
)

// Authentication metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_converter_auth_attempts_total",
			Help: "Total number of API token checks",
		},
		[]string{"status"},
	)
)

// Job history metrics
var (
	JobsStored = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_jobs_stored",
			Help: "Job records in the history database by state",
		},
		[]string{"state"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_converter_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
