package jobs

import (
	"context"
	"fmt"
	"time"

	"media-converter/internal/converter"
	"media-converter/internal/events"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// Converter runs one conversion. *converter.Converter satisfies it.
type Converter interface {
	Convert(ctx context.Context, req converter.Request, onProgress converter.ProgressFunc) converter.Result
}

// Runner executes jobs and publishes their progress and result.
type Runner struct {
	conv Converter
	pub  events.Publisher
}

// NewRunner creates a Runner that reports to pub.
func NewRunner(conv Converter, pub events.Publisher) *Runner {
	return &Runner{conv: conv, pub: pub}
}

// Run converts req and publishes every progress update followed by exactly
// one result event.
func (r *Runner) Run(ctx context.Context, req converter.Request) converter.Result {
	log := logging.Job(req.ID)

	metrics.ConversionsInProgress.Inc()
	defer metrics.ConversionsInProgress.Dec()

	start := time.Now()
	res := r.conv.Convert(ctx, req, func(p converter.Progress) {
		if err := r.pub.Publish(ctx, events.FromProgress(p)); err != nil {
			log.Debug("Failed to publish progress: %v", err)
		}
	})

	metrics.RecordResult(kindLabel(req.Kind), res, req.TargetBytes, time.Since(start).Seconds())
	r.finish(ctx, res)
	return res
}

// Abandon publishes a failed result for a job that never started.
func (r *Runner) Abandon(ctx context.Context, req converter.Request, cause error) converter.Result {
	res := converter.Result{
		JobID:  req.ID,
		Error:  fmt.Sprintf("job did not start: %v", cause),
		Reason: converter.Reason(cause),
	}
	logging.Job(req.ID).Warn("Abandoned before start: %v", cause)

	metrics.RecordResult(kindLabel(req.Kind), res, req.TargetBytes, 0)
	r.finish(ctx, res)
	return res
}

func (r *Runner) finish(ctx context.Context, res converter.Result) {
	// The result must be delivered even when the job itself was cancelled.
	if err := r.pub.Publish(context.WithoutCancel(ctx), events.FromResult(res)); err != nil {
		logging.Job(res.JobID).Error("Failed to publish result: %v", err)
	}
}

// kindLabel keeps arbitrary client input out of metric labels.
func kindLabel(tag string) string {
	kind, err := converter.ParseKind(tag)
	if err != nil {
		return "unknown"
	}
	return kind.Tag()
}
