package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"media-converter/internal/converter"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// TaskConvert is the asynq task type carrying a converter.Request.
const TaskConvert = "conversion:run"

// NewConvertTask encodes req as a conversion task. Conversions are never
// retried automatically: a failure is a result, not a transient error.
func NewConvertTask(req converter.Request) (*asynq.Task, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", TaskConvert, err)
	}
	return asynq.NewTask(TaskConvert, payload, asynq.MaxRetry(0)), nil
}

// QueueDispatcher enqueues jobs for cmd/worker through Redis.
type QueueDispatcher struct {
	client *asynq.Client
	queue  string
}

// NewQueueDispatcher creates a dispatcher on the given Redis connection.
// An empty queue selects asynq's default queue.
func NewQueueDispatcher(opt asynq.RedisConnOpt, queue string) *QueueDispatcher {
	return &QueueDispatcher{client: asynq.NewClient(opt), queue: queue}
}

// Dispatch implements Dispatcher.
func (d *QueueDispatcher) Dispatch(ctx context.Context, req converter.Request) error {
	task, err := NewConvertTask(req)
	if err != nil {
		metrics.QueueTasksTotal.WithLabelValues("enqueue", "error").Inc()
		return err
	}

	opts := []asynq.Option{asynq.TaskID(req.ID)}
	if d.queue != "" {
		opts = append(opts, asynq.Queue(d.queue))
	}

	info, err := d.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		metrics.QueueTasksTotal.WithLabelValues("enqueue", "error").Inc()
		return fmt.Errorf("failed to enqueue job %s: %w", req.ID, err)
	}
	metrics.QueueTasksTotal.WithLabelValues("enqueue", "success").Inc()
	logging.Job(req.ID).Debug("Enqueued as %s on queue %s", info.ID, info.Queue)
	return nil
}

// Close implements Dispatcher.
func (d *QueueDispatcher) Close() error {
	return d.client.Close()
}

// NewTaskHandler returns the asynq handler that runs conversion tasks.
func NewTaskHandler(runner *Runner) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		var req converter.Request
		if err := json.Unmarshal(t.Payload(), &req); err != nil {
			metrics.QueueTasksTotal.WithLabelValues("process", "error").Inc()
			return fmt.Errorf("invalid %s payload: %v: %w", TaskConvert, err, asynq.SkipRetry)
		}
		if req.ID == "" {
			if id, ok := asynq.GetTaskID(ctx); ok {
				req.ID = id
			}
		}

		res := runner.Run(ctx, req)

		status := "success"
		if !res.Success {
			status = "error"
		}
		metrics.QueueTasksTotal.WithLabelValues("process", status).Inc()
		return nil
	})
}
