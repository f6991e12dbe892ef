package events

import (
	"context"
	"errors"
	"sync"

	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

const (
	// subscriberBuffer is the number of events a slow reader may fall behind
	// before progress updates are skipped for it.
	subscriberBuffer = 8

	// DefaultRetained is how many finished jobs keep their result in memory
	// for late subscribers.
	DefaultRetained = 1000
)

var errNoJobID = errors.New("event has no job id")

// Hub tracks the last event of each job and broadcasts new events to
// subscribers. It is safe for concurrent use.
type Hub struct {
	mu          sync.Mutex
	last        map[string]Event
	subscribers map[string]map[chan Event]struct{}
	finished    []string // terminal job IDs, oldest first
	retain      int
	closed      bool
}

// NewHub creates a Hub that remembers the results of the last retain
// finished jobs. retain <= 0 selects DefaultRetained.
func NewHub(retain int) *Hub {
	if retain <= 0 {
		retain = DefaultRetained
	}
	return &Hub{
		last:        make(map[string]Event),
		subscribers: make(map[string]map[chan Event]struct{}),
		retain:      retain,
	}
}

// Subscribe registers a reader for jobID. The last known event, if any, is
// delivered first. The channel is closed after the terminal event, when the
// returned cancel function is called, or when the hub is closed. cancel is
// safe to call more than once.
func (h *Hub) Subscribe(jobID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	last, known := h.last[jobID]
	if known {
		ch <- last
	}
	if h.closed || (known && last.Terminal()) {
		close(ch)
		return ch, func() {}
	}

	subs, ok := h.subscribers[jobID]
	if !ok {
		subs = make(map[chan Event]struct{})
		h.subscribers[jobID] = subs
	}
	subs[ch] = struct{}{}
	metrics.EventSubscribers.Inc()
	logging.Debug("New subscriber for job %s (%d total)", jobID, len(subs))

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(jobID, ch) })
	}
}

func (h *Hub) unsubscribe(jobID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[jobID]
	if !ok {
		return
	}
	// Already closed by a terminal event or Close.
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	close(ch)
	metrics.EventSubscribers.Dec()
	if len(subs) == 0 {
		delete(h.subscribers, jobID)
	}
}

// Publish records ev and forwards it to the job's subscribers. It never
// blocks: a subscriber whose buffer is full misses the progress update, but
// the terminal event is always delivered, displacing the oldest buffered
// update if necessary. Events arriving after a job's result are ignored.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	if ev.JobID == "" {
		metrics.EventsPublishedTotal.WithLabelValues("hub", "error").Inc()
		return errNoJobID
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	prev, known := h.last[ev.JobID]
	if known && prev.Terminal() {
		return nil
	}
	if known && !ev.Terminal() && ev.Progress < prev.Progress {
		ev.Progress = prev.Progress
	}
	h.last[ev.JobID] = ev

	for ch := range h.subscribers[ev.JobID] {
		if ev.Terminal() {
			sendTerminal(ch, ev)
			close(ch)
			metrics.EventSubscribers.Dec()
			continue
		}
		select {
		case ch <- ev:
		default:
			metrics.EventsDroppedTotal.Inc()
		}
	}

	if ev.Terminal() {
		delete(h.subscribers, ev.JobID)
		h.retire(ev.JobID)
	}
	metrics.EventsPublishedTotal.WithLabelValues("hub", "success").Inc()
	return nil
}

// sendTerminal delivers ev even to a full channel. Only the hub sends on
// subscriber channels, and it holds the lock, so one free slot is enough.
func sendTerminal(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
		metrics.EventsDroppedTotal.Inc()
	default:
	}
	ch <- ev
}

func (h *Hub) retire(jobID string) {
	h.finished = append(h.finished, jobID)
	for len(h.finished) > h.retain {
		delete(h.last, h.finished[0])
		h.finished = h.finished[1:]
	}
}

// Last returns the most recent event recorded for jobID.
func (h *Hub) Last(jobID string) (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ev, ok := h.last[jobID]
	return ev, ok
}

// Subscribers returns the number of open subscriptions for jobID.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[jobID])
}

// Close ends every open subscription. Later subscriptions receive the last
// known event, if any, and are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for jobID, subs := range h.subscribers {
		for ch := range subs {
			close(ch)
			metrics.EventSubscribers.Dec()
		}
		delete(h.subscribers, jobID)
	}
}
