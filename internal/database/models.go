package database

import (
	"errors"
	"time"

	"media-converter/internal/converter"
)

// ErrJobNotFound is returned when no job has the requested ID.
var ErrJobNotFound = errors.New("job not found")

// JobState is the lifecycle state of a stored job.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

// Finished reports whether the state is terminal.
func (s JobState) Finished() bool {
	return s == JobSucceeded || s == JobFailed
}

// Job is a stored conversion job.
type Job struct {
	ID         string            `json:"id"`
	Request    converter.Request `json:"request"`
	State      JobState          `json:"state"`
	Progress   float64           `json:"progress"`
	Status     converter.Status  `json:"status,omitempty"`
	OutputPath string            `json:"outputPath,omitempty"`
	OutputSize int64             `json:"outputSize,omitempty"`
	Strategy   string            `json:"strategy,omitempty"`
	Error      string            `json:"error,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	StartedAt  *time.Time        `json:"startedAt,omitempty"`
	FinishedAt *time.Time        `json:"finishedAt,omitempty"`
}

// Result rebuilds the converter result of a finished job. ok is false while
// the job is still queued or running.
func (j *Job) Result() (converter.Result, bool) {
	if !j.State.Finished() {
		return converter.Result{}, false
	}
	return converter.Result{
		JobID:      j.ID,
		Success:    j.State == JobSucceeded,
		OutputPath: j.OutputPath,
		OutputSize: j.OutputSize,
		Error:      j.Error,
		Reason:     j.Reason,
		Strategy:   j.Strategy,
	}, true
}
