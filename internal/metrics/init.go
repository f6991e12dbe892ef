package metrics

import (
	"media-converter/internal/capability"
	"media-converter/internal/converter"
)

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Conversions per kind ---
	strategies := []string{"hardware", "two_pass", "tiered"}
	for _, k := range converter.Kinds() {
		kind := k.Tag()
		for _, s := range strategies {
			ConversionsTotal.WithLabelValues(kind, s, "success")
			ConversionsTotal.WithLabelValues(kind, s, "error")
		}
		ConversionDuration.WithLabelValues(kind)
		OutputSizeRatio.WithLabelValues(kind)
	}

	for _, reason := range converter.Reasons() {
		ConversionFailures.WithLabelValues(reason)
	}

	// --- Tier attempts exist only for size-searched kinds ---
	for _, kind := range []string{"webp", "gif"} {
		TierAttemptsTotal.WithLabelValues(kind, "true")
		TierAttemptsTotal.WithLabelValues(kind, "false")
	}

	// --- FFmpeg stages ---
	for _, stage := range []string{"encode", "pass1", "pass2", "tier"} {
		FFmpegInvocationsTotal.WithLabelValues(stage, "success")
		FFmpegInvocationsTotal.WithLabelValues(stage, "error")
		FFmpegInvocationDuration.WithLabelValues(stage)
	}

	for _, k := range capability.Kinds() {
		CapabilityAvailable.WithLabelValues(string(k), k.Encoder())
	}

	for _, sink := range []string{"hub", "redis"} {
		EventsPublishedTotal.WithLabelValues(sink, "success")
		EventsPublishedTotal.WithLabelValues(sink, "error")
	}

	for _, op := range []string{"enqueue", "process"} {
		QueueTasksTotal.WithLabelValues(op, "success")
		QueueTasksTotal.WithLabelValues(op, "error")
	}

	for _, status := range []string{"success", "failure", "missing"} {
		AuthAttemptsTotal.WithLabelValues(status)
	}

	for _, state := range []string{"queued", "running", "succeeded", "failed"} {
		JobsStored.WithLabelValues(state)
	}

	// --- DB query operations ---
	for _, op := range []string{"initialize_schema", "create_job", "update_progress",
		"complete_job", "get_job", "list_jobs", "prune_jobs", "count_jobs", "fail_interrupted"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	// --- Filesystem retry metrics (per retry-operation × volume) ---
	for _, op := range []string{"stat", "remove"} {
		for _, vol := range []string{"work", "output", "database", "unknown"} {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
