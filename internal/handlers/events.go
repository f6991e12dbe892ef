package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"media-converter/internal/events"
	"media-converter/internal/logging"
	"media-converter/internal/streaming"
)

// JobEvents streams a job's progress as Server-Sent Events. Each event's
// SSE name is its type ("progress" or "result"); the stream ends after the
// result. A job that has already finished gets its result immediately;
// otherwise the last event seen for the job is replayed first.
// GET /api/jobs/{id}/events
func (h *Handlers) JobEvents(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}

	stream, err := streaming.NewEventWriter(r.Context(), w, h.stream)
	if err != nil {
		logging.Warn("[%s] Cannot open event stream: %v", job.ID, err)
		writeJSONError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	defer func() {
		n, size, d := stream.Stats()
		logging.Debug("[%s] Event stream ended: %d event(s), %d bytes in %v", job.ID, n, size, d.Round(time.Millisecond))
		if err := stream.Close(); err != nil {
			logging.Debug("[%s] Failed to close event stream: %v", job.ID, err)
		}
	}()

	if res, done := job.Result(); done {
		if err := writeEvent(stream, events.FromResult(res)); err != nil {
			logging.Debug("[%s] Client write error: %v", job.ID, err)
		}
		return
	}

	ch, cancel := h.events.Subscribe(job.ID)
	defer cancel()

	logging.Debug("[%s] Client connected to event stream", job.ID)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				logging.Debug("[%s] Event stream closed", job.ID)
				return
			}
			if err := writeEvent(stream, ev); err != nil {
				logging.Debug("[%s] Client disconnected or write error: %v", job.ID, err)
				return
			}
			if ev.Terminal() {
				return
			}

		case <-ticker.C:
			if err := stream.Comment("keep-alive"); err != nil {
				logging.Debug("[%s] Keep-alive failed: %v", job.ID, err)
				return
			}

		case <-r.Context().Done():
			logging.Debug("[%s] Client connection closed", job.ID)
			return
		}
	}
}

func writeEvent(stream *streaming.EventWriter, ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return stream.Event(string(ev.Type), data)
}
