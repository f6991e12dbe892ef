package events

import (
	"context"
	"errors"
	"time"

	"media-converter/internal/converter"
)

// Type distinguishes progress updates from the terminal result.
type Type string

const (
	TypeProgress Type = "progress"
	TypeResult   Type = "result"
)

// Event is one observation of a job, as streamed to clients.
type Event struct {
	Type      Type              `json:"type"`
	JobID     string            `json:"id"`
	Progress  float64           `json:"progress"`
	Status    converter.Status  `json:"status"`
	Result    *converter.Result `json:"result,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Terminal reports whether no further events follow for the job.
func (e Event) Terminal() bool {
	return e.Type == TypeResult
}

// FromProgress wraps a progress observation.
func FromProgress(p converter.Progress) Event {
	return Event{
		Type:      TypeProgress,
		JobID:     p.JobID,
		Progress:  p.Progress,
		Status:    p.Status,
		Timestamp: time.Now().UnixMilli(),
	}
}

// FromResult wraps a finished job's result.
func FromResult(res converter.Result) Event {
	ev := Event{
		Type:      TypeResult,
		JobID:     res.JobID,
		Status:    converter.StatusFailed,
		Result:    &res,
		Timestamp: time.Now().UnixMilli(),
	}
	if res.Success {
		ev.Progress = 100
		ev.Status = converter.StatusCompleted
	}
	return ev
}

// Publisher accepts job events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

// Publish calls f.
func (f PublisherFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Multi publishes to each publisher in order. Every publisher is tried even
// when an earlier one fails.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
