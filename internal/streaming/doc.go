/*
Package streaming writes Server-Sent Events with timeout protection.

# Overview

A job's progress stream stays open for as long as the conversion runs,
which can be many minutes. The HTTP server therefore runs without a global
WriteTimeout, and a client that stops reading would otherwise pin the
handler goroutine and its hub subscription. EventWriter bounds every event
write with a per-write deadline instead, set through
http.ResponseController, and flushes after each event so the browser sees
it at once.

# Basic Usage

	func (h *Handlers) JobEvents(w http.ResponseWriter, r *http.Request) {
		stream, err := streaming.NewEventWriter(r.Context(), w, streaming.DefaultConfig())
		if err != nil {
			writeJSONError(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}
		defer stream.Close()

		for ev := range updates {
			data, _ := json.Marshal(ev)
			if err := stream.Event("progress", data); err != nil {
				return
			}
		}
	}

NewEventWriter sends the text/event-stream headers and disables proxy
buffering (X-Accel-Buffering: no). Comment writes a line clients ignore,
used as a keep-alive between events.

# Error Handling

	var (
		// ErrWriteTimeout: a write or flush exceeded WriteTimeout
		ErrWriteTimeout = errors.New("write timeout exceeded")

		// ErrClientGone: the request context was canceled
		ErrClientGone = errors.New("client disconnected")

		// ErrStreamCanceled: Close was called or MaxDuration elapsed
		ErrStreamCanceled = errors.New("stream canceled")

		// ErrFlushUnsupported: the ResponseWriter cannot flush
		ErrFlushUnsupported = errors.New("streaming unsupported")
	)

These errors can be checked using errors.Is:

	if errors.Is(err, streaming.ErrClientGone) {
		// Client disconnected, not a server error
		return
	}

# Middleware

Write deadlines reach the connection only when every wrapping
ResponseWriter exposes Unwrap. The middleware package's wrappers do.
Without it (httptest.ResponseRecorder, for instance) events are still
written and flushed, just without a deadline.

# Thread Safety

EventWriter is safe for concurrent use. Writes are serialized, so an event
and a keep-alive comment never interleave.
*/
package streaming
