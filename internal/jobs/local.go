package jobs

import (
	"context"
	"errors"
	"sync"

	"media-converter/internal/converter"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// ErrClosed is returned by Dispatch after Close.
var ErrClosed = errors.New("dispatcher is closed")

// LocalDispatcher runs jobs in goroutines of this process, at most
// concurrency at a time. Jobs waiting for a slot run in submission order
// only loosely; no fairness is promised.
type LocalDispatcher struct {
	runner *Runner
	slots  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	running map[string]context.CancelFunc
}

// NewLocalDispatcher creates a dispatcher with the given number of slots.
func NewLocalDispatcher(runner *Runner, concurrency int) *LocalDispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalDispatcher{
		runner:  runner,
		slots:   make(chan struct{}, concurrency),
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]context.CancelFunc),
	}
}

// Dispatch starts req in the background and returns immediately.
func (d *LocalDispatcher) Dispatch(_ context.Context, req converter.Request) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	jobCtx, cancel := context.WithCancel(d.ctx)
	d.running[req.ID] = cancel
	d.wg.Add(1)
	d.mu.Unlock()

	metrics.ConversionsQueued.Inc()
	go d.run(jobCtx, req)
	return nil
}

func (d *LocalDispatcher) run(ctx context.Context, req converter.Request) {
	defer d.wg.Done()
	defer d.forget(req.ID)

	acquired := false
	select {
	case d.slots <- struct{}{}:
		acquired = true
	case <-ctx.Done():
	}
	metrics.ConversionsQueued.Dec()
	if acquired {
		defer func() { <-d.slots }()
	}

	if err := ctx.Err(); err != nil {
		d.runner.Abandon(ctx, req, err)
		return
	}

	logging.Job(req.ID).Debug("Starting in local slot")
	d.runner.Run(ctx, req)
}

func (d *LocalDispatcher) forget(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cancel, ok := d.running[id]; ok {
		cancel()
		delete(d.running, id)
	}
}

// Cancel stops a queued or running job. It reports false for unknown IDs.
func (d *LocalDispatcher) Cancel(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cancel, ok := d.running[id]
	if ok {
		cancel()
	}
	return ok
}

// Running returns the number of jobs that are queued or running.
func (d *LocalDispatcher) Running() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.running)
}

// Close rejects new jobs, cancels the ones in flight and waits until each
// has published its result.
func (d *LocalDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	n := len(d.running)
	d.mu.Unlock()

	if n > 0 {
		logging.Info("Cancelling %d in-flight conversion job(s)", n)
	}
	d.cancel()
	d.wg.Wait()
	return nil
}
