package planner

import (
	"errors"
	"fmt"
	"math"
)

const (
	// AudioKbps is the fixed audio allocation subtracted from every budget.
	AudioKbps = 128
	// MinVideoKbps is the floor applied to the derived video bitrate.
	MinVideoKbps = 100
)

// ErrInvalidDuration is returned when the effective duration is not a
// positive, finite number of seconds.
var ErrInvalidDuration = errors.New("duration must be positive")

// Bitrate is a video rate-control triple, in kbps.
type Bitrate struct {
	TargetKbps int `json:"targetKbps"`
	MaxKbps    int `json:"maxKbps"`
	BufferKbps int `json:"bufferKbps"`
}

// Target returns the target bitrate formatted for ffmpeg ("1234k").
func (b Bitrate) Target() string { return fmt.Sprintf("%dk", b.TargetKbps) }

// Max returns the maxrate ceiling formatted for ffmpeg.
func (b Bitrate) Max() string { return fmt.Sprintf("%dk", b.MaxKbps) }

// Buffer returns the VBV buffer size formatted for ffmpeg.
func (b Bitrate) Buffer() string { return fmt.Sprintf("%dk", b.BufferKbps) }

// PlanBitrate computes the video bitrate that makes targetBytes last for
// duration seconds once AudioKbps has been set aside. The result never drops
// below MinVideoKbps; the max rate is 1.5x and the buffer 2x the target.
func PlanBitrate(targetBytes int64, duration float64) (Bitrate, error) {
	if !(duration > 0) || math.IsInf(duration, 0) {
		return Bitrate{}, fmt.Errorf("%w: got %v", ErrInvalidDuration, duration)
	}

	totalBps := float64(targetBytes) * 8 / duration
	videoBps := math.Max(totalBps-AudioKbps*1000, MinVideoKbps*1000)

	// Truncate so that target+audio never exceeds the budget.
	target := int(videoBps / 1000)
	return Bitrate{
		TargetKbps: target,
		MaxKbps:    int(float64(target) * 1.5),
		BufferKbps: target * 2,
	}, nil
}

// EffectiveDuration returns the number of seconds the encoder will actually
// produce for a source of mediaDuration seconds. Either trim value may be nil.
// A trim window running past the end of the media is clamped to what remains.
func EffectiveDuration(mediaDuration float64, trimStart, trimDuration *float64) float64 {
	start := 0.0
	if trimStart != nil {
		start = *trimStart
	}
	remaining := mediaDuration - start
	if remaining < 0 {
		remaining = 0
	}
	if trimDuration == nil {
		return remaining
	}
	return math.Min(*trimDuration, remaining)
}
