package converter

import (
	"context"
	"errors"
)

var (
	// ErrInvalidRequest is returned for malformed requests, such as a negative
	// trim or a non-positive byte budget.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUnsupportedKind is returned for an output kind tag that is not known.
	ErrUnsupportedKind = errors.New("unsupported output kind")
	// ErrInputResolution is returned when the input cannot be probed or has
	// no usable duration.
	ErrInputResolution = errors.New("cannot read input media")
	// ErrSpawn is returned when the encoder binary cannot be launched.
	ErrSpawn = errors.New("cannot start encoder")
	// ErrEncode is returned when the encoder exits unsuccessfully.
	ErrEncode = errors.New("encode failed")
	// ErrSidecar is returned when a temporary side file cannot be written.
	ErrSidecar = errors.New("cannot write side file")
)

// Reason maps an error to a short label for metrics and job records.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrUnsupportedKind):
		return "unsupported_kind"
	case errors.Is(err, ErrInputResolution):
		return "input"
	case errors.Is(err, ErrSpawn):
		return "spawn"
	case errors.Is(err, ErrEncode):
		return "encode"
	case errors.Is(err, ErrSidecar):
		return "sidecar"
	default:
		return "internal"
	}
}

// Reasons lists every label Reason can return for a failed job.
func Reasons() []string {
	return []string{"cancelled", "invalid_request", "unsupported_kind", "input", "spawn", "encode", "sidecar", "internal"}
}
