package converter

import (
	"fmt"
	"math"
	"strings"

	"media-converter/internal/timeline"
)

// Request describes one conversion.
type Request struct {
	ID           string            `json:"id"`
	InputPath    string            `json:"inputPath"`
	OutputName   string            `json:"outputName,omitempty"`
	TargetBytes  int64             `json:"targetBytes"`
	Kind         string            `json:"kind"`
	TrimStart    *float64          `json:"trimStart,omitempty"`
	TrimDuration *float64          `json:"trimDuration,omitempty"`
	Markers      []timeline.Marker `json:"markers,omitempty"`
}

// Validate checks the fields that do not depend on the input media.
func (r Request) Validate() error {
	if strings.TrimSpace(r.InputPath) == "" {
		return fmt.Errorf("%w: input path is required", ErrInvalidRequest)
	}
	if r.TargetBytes <= 0 {
		return fmt.Errorf("%w: target size must be positive, got %d", ErrInvalidRequest, r.TargetBytes)
	}
	if r.TrimStart != nil && !(*r.TrimStart >= 0) {
		return fmt.Errorf("%w: trim start must be >= 0, got %v", ErrInvalidRequest, *r.TrimStart)
	}
	if r.TrimDuration != nil && (!(*r.TrimDuration >= 0) || math.IsInf(*r.TrimDuration, 0)) {
		return fmt.Errorf("%w: trim duration must be >= 0, got %v", ErrInvalidRequest, *r.TrimDuration)
	}
	return nil
}

// Result is the terminal outcome of a job. Exactly one is produced per
// request; a failure is a Result with Success=false.
type Result struct {
	JobID      string `json:"jobId"`
	Success    bool   `json:"success"`
	OutputPath string `json:"outputPath,omitempty"`
	OutputSize int64  `json:"outputSize,omitempty"`
	Error      string `json:"error,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
}

// Status is the coarse phase reported alongside progress.
type Status string

const (
	StatusAnalyzing  Status = "analyzing"
	StatusConverting Status = "converting"
	StatusCompleted  Status = "completed"
	// StatusFailed only appears on terminal result events.
	StatusFailed Status = "failed"
)

// Progress is one progress observation for a job.
type Progress struct {
	JobID    string  `json:"id"`
	Progress float64 `json:"progress"`
	Status   Status  `json:"status"`
}

// ProgressFunc receives progress for a job. It is called synchronously from
// the job's goroutine and must not block.
type ProgressFunc func(Progress)
