package streaming

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write or flush exceeded the configured
	// timeout. This typically means the client stopped reading.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the stream completed.
	// This is detected via the request context being canceled.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates that the stream was closed by the server,
	// either by calling Close or because MaxDuration elapsed.
	ErrStreamCanceled = errors.New("stream canceled")

	// ErrFlushUnsupported is returned by NewEventWriter when the response
	// writer cannot flush, so events would sit in a buffer.
	ErrFlushUnsupported = errors.New("streaming unsupported")
)

// Config configures an EventWriter.
type Config struct {
	// WriteTimeout bounds each event's write and flush. Zero disables it.
	WriteTimeout time.Duration
	// MaxDuration is the absolute maximum stream duration (0 = unlimited).
	MaxDuration time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		MaxDuration:  0, // Unlimited by default
	}
}

// EventWriter writes Server-Sent Events to an http.ResponseWriter, flushing
// after each one. Writes are bounded by a per-write deadline when the
// underlying connection supports it.
type EventWriter struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	ctx       context.Context
	config    Config
	startTime time.Time

	mu           sync.Mutex
	closed       bool
	deadlines    bool
	events       int
	bytesWritten int64
}

// NewEventWriter sends the event stream headers and a 200 status, then
// returns a writer for the events. Nothing is written when w cannot flush.
func NewEventWriter(ctx context.Context, w http.ResponseWriter, config Config) (*EventWriter, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, ErrFlushUnsupported
	}

	ew := &EventWriter{
		w:         w,
		rc:        http.NewResponseController(w),
		ctx:       ctx,
		config:    config,
		startTime: time.Now(),
		deadlines: config.WriteTimeout > 0,
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := ew.rc.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush stream headers: %w", err)
	}
	return ew, nil
}

// Event writes one named event. data must not contain a newline; JSON
// encoded payloads never do.
func (ew *EventWriter) Event(name string, data []byte) error {
	return ew.write(fmt.Appendf(nil, "event: %s\ndata: %s\n\n", name, data), true)
}

// Comment writes an SSE comment line, which clients ignore. It keeps
// proxies from closing an idle stream.
func (ew *EventWriter) Comment(text string) error {
	return ew.write(fmt.Appendf(nil, ": %s\n\n", text), false)
}

func (ew *EventWriter) write(p []byte, isEvent bool) error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	if ew.closed {
		return ErrStreamCanceled
	}

	// Check context before writing
	select {
	case <-ew.ctx.Done():
		return ew.contextError()
	default:
	}

	if ew.config.MaxDuration > 0 && time.Since(ew.startTime) > ew.config.MaxDuration {
		return ErrStreamCanceled
	}

	if ew.deadlines {
		if err := ew.rc.SetWriteDeadline(time.Now().Add(ew.config.WriteTimeout)); err != nil {
			// Recorders and some wrappers have no connection to bound.
			ew.deadlines = false
		}
	}

	n, err := ew.w.Write(p)
	if err == nil {
		err = ew.rc.Flush()
	}
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return ErrWriteTimeout
		}
		return err
	}

	ew.bytesWritten += int64(n)
	if isEvent {
		ew.events++
	}
	return nil
}

// contextError returns an appropriate error based on context state
func (ew *EventWriter) contextError() error {
	if errors.Is(ew.ctx.Err(), context.Canceled) {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close marks the writer as closed and clears any write deadline so the
// server can finish the response.
func (ew *EventWriter) Close() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	if ew.closed {
		return nil
	}
	ew.closed = true

	if ew.deadlines {
		if err := ew.rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return err
		}
	}
	return nil
}

// Stats returns the number of events and bytes written, and how long the
// stream has been open.
func (ew *EventWriter) Stats() (events int, bytesWritten int64, duration time.Duration) {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	return ew.events, ew.bytesWritten, time.Since(ew.startTime)
}
