package metrics

import (
	"strconv"

	"media-converter/internal/capability"
	"media-converter/internal/converter"
	"media-converter/internal/filesystem"
)

// conversionObserver implements converter.Observer using the Prometheus
// metrics declared in this package.
type conversionObserver struct{}

// NewConversionObserver creates an observer that records encoder invocations
// and tier attempts into the counters and histograms declared in metrics.go.
func NewConversionObserver() converter.Observer {
	return &conversionObserver{}
}

func (o *conversionObserver) ObserveInvocation(stage string, durationSeconds float64, err error) {
	FFmpegInvocationDuration.WithLabelValues(stage).Observe(durationSeconds)
	status := "success"
	if err != nil {
		status = "error"
	}
	FFmpegInvocationsTotal.WithLabelValues(stage, status).Inc()
}

func (o *conversionObserver) ObserveTier(kind string, _ int, fits bool) {
	TierAttemptsTotal.WithLabelValues(kind, strconv.FormatBool(fits)).Inc()
}

// RecordResult updates the per-job counters once a conversion has finished.
func RecordResult(kind string, res converter.Result, targetBytes int64, durationSeconds float64) {
	strategy := res.Strategy
	if strategy == "" {
		strategy = "unknown"
	}
	status := "success"
	if !res.Success {
		status = "error"
		ConversionFailures.WithLabelValues(res.Reason).Inc()
	}
	ConversionsTotal.WithLabelValues(kind, strategy, status).Inc()
	ConversionDuration.WithLabelValues(kind).Observe(durationSeconds)

	if res.Success && targetBytes > 0 {
		OutputSizeRatio.WithLabelValues(kind).Observe(float64(res.OutputSize) / float64(targetBytes))
	}
}

// RecordCapabilities exports the capabilities probed so far.
func RecordCapabilities(statuses []capability.Status) {
	for _, s := range statuses {
		v := 0.0
		if s.Available {
			v = 1
		}
		CapabilityAvailable.WithLabelValues(string(s.Kind), s.Encoder).Set(v)
	}
}

// filesystemObserver implements filesystem.Observer.
type filesystemObserver struct{}

// NewFilesystemObserver creates an observer for the filesystem package's
// stale handle retries. Install it with filesystem.SetObserver.
func NewFilesystemObserver() filesystem.Observer {
	return &filesystemObserver{}
}

func (o *filesystemObserver) ObserveRetryAttempt(op, volume string) {
	FilesystemRetryAttempts.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetrySuccess(op, volume string) {
	FilesystemRetrySuccess.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetryFailure(op, volume string) {
	FilesystemRetryFailures.WithLabelValues(op, volume).Inc()
}

func (o *filesystemObserver) ObserveRetryDuration(op, volume string, durationSeconds float64) {
	FilesystemRetryDuration.WithLabelValues(op, volume).Observe(durationSeconds)
}

func (o *filesystemObserver) ObserveStaleError(op, volume string) {
	FilesystemStaleErrors.WithLabelValues(op, volume).Inc()
}
