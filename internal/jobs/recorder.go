package jobs

import (
	"context"
	"sync"

	"media-converter/internal/converter"
	"media-converter/internal/events"
	"media-converter/internal/logging"
)

// Store is the job history. *database.Database satisfies it.
type Store interface {
	CreateJob(ctx context.Context, req converter.Request) error
	UpdateProgress(ctx context.Context, id string, pct float64, status converter.Status) error
	CompleteJob(ctx context.Context, res converter.Result) error
	PruneJobs(ctx context.Context, keep int) (int64, error)
}

// progressStep is the smallest progress change written to the store.
const progressStep = 1.0

type mark struct {
	progress float64
	status   converter.Status
}

// Recorder persists job events to a Store and passes them on to the next
// publisher, usually the Hub serving SSE clients.
type Recorder struct {
	store        Store
	next         events.Publisher
	historyLimit int

	mu      sync.Mutex
	written map[string]mark
}

// NewRecorder creates a Recorder. After each result, finished jobs beyond
// the newest historyLimit are pruned; historyLimit <= 0 keeps everything.
func NewRecorder(store Store, next events.Publisher, historyLimit int) *Recorder {
	return &Recorder{
		store:        store,
		next:         next,
		historyLimit: historyLimit,
		written:      make(map[string]mark),
	}
}

// Publish implements events.Publisher. Store failures are logged and do not
// stop the event from reaching the next publisher.
func (r *Recorder) Publish(ctx context.Context, ev events.Event) error {
	if ev.Terminal() {
		r.complete(ctx, ev)
	} else if r.due(ev) {
		if err := r.store.UpdateProgress(ctx, ev.JobID, ev.Progress, ev.Status); err != nil {
			logging.Job(ev.JobID).Debug("Failed to store progress: %v", err)
		}
	}

	if r.next == nil {
		return nil
	}
	return r.next.Publish(ctx, ev)
}

// due reports whether a progress event differs enough from what was last
// written to be worth a store update.
func (r *Recorder) due(ev events.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, seen := r.written[ev.JobID]
	if seen && ev.Status == last.status && ev.Progress-last.progress < progressStep {
		return false
	}
	r.written[ev.JobID] = mark{progress: ev.Progress, status: ev.Status}
	return true
}

func (r *Recorder) complete(ctx context.Context, ev events.Event) {
	r.mu.Lock()
	delete(r.written, ev.JobID)
	r.mu.Unlock()

	if ev.Result == nil {
		return
	}
	log := logging.Job(ev.JobID)
	if err := r.store.CompleteJob(ctx, *ev.Result); err != nil {
		log.Error("Failed to store result: %v", err)
		return
	}

	if r.historyLimit <= 0 {
		return
	}
	if n, err := r.store.PruneJobs(ctx, r.historyLimit); err != nil {
		log.Warn("Failed to prune job history: %v", err)
	} else if n > 0 {
		logging.Debug("Pruned %d finished jobs beyond the newest %d", n, r.historyLimit)
	}
}
