package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"media-converter/internal/converter"
	"media-converter/internal/database"
	"media-converter/internal/logging"
)

var (
	// ErrDispatch is returned when an accepted job could not be handed to a
	// dispatcher. The job is recorded as failed.
	ErrDispatch = errors.New("failed to dispatch job")
	// ErrCancelUnsupported is returned by Cancel when the dispatcher cannot
	// cancel jobs.
	ErrCancelUnsupported = errors.New("job cancellation is not supported by this backend")
	// ErrNotRunning is returned by Cancel for a job that is not queued or running here.
	ErrNotRunning = errors.New("job is not running")
)

// Dispatcher starts a recorded job.
type Dispatcher interface {
	Dispatch(ctx context.Context, req converter.Request) error
	Close() error
}

// Canceler is implemented by dispatchers that can stop a job they started.
type Canceler interface {
	Cancel(id string) bool
}

// History is the read and write side of the job store the Manager uses.
// *database.Database satisfies it.
type History interface {
	Store
	GetJob(ctx context.Context, id string) (*database.Job, error)
	ListJobs(ctx context.Context, limit int) ([]database.Job, error)
}

// Manager is the job submission interface shared by the HTTP API and the CLI.
type Manager struct {
	store      History
	dispatcher Dispatcher
}

// NewManager creates a Manager.
func NewManager(store History, dispatcher Dispatcher) *Manager {
	return &Manager{store: store, dispatcher: dispatcher}
}

// Submit validates req, assigns it a new ID, records it and dispatches it.
// Requests naming an unknown kind or failing validation are rejected before
// anything is written.
func (m *Manager) Submit(ctx context.Context, req converter.Request) (converter.Request, error) {
	kind, err := converter.ParseKind(req.Kind)
	if err != nil {
		return req, err
	}
	if err := req.Validate(); err != nil {
		return req, err
	}

	req.Kind = kind.Tag()
	req.ID = uuid.NewString()

	if err := m.store.CreateJob(ctx, req); err != nil {
		return req, fmt.Errorf("failed to record job: %w", err)
	}

	if err := m.dispatcher.Dispatch(ctx, req); err != nil {
		res := converter.Result{JobID: req.ID, Error: err.Error(), Reason: "internal"}
		if storeErr := m.store.CompleteJob(context.WithoutCancel(ctx), res); storeErr != nil {
			logging.Job(req.ID).Error("Failed to record dispatch failure: %v", storeErr)
		}
		return req, fmt.Errorf("%w: %w", ErrDispatch, err)
	}

	logging.Job(req.ID).Info("Accepted %s job for %s (target %d bytes)", req.Kind, req.InputPath, req.TargetBytes)
	return req, nil
}

// Get returns a job by ID. Unknown IDs yield database.ErrJobNotFound.
func (m *Manager) Get(ctx context.Context, id string) (*database.Job, error) {
	return m.store.GetJob(ctx, id)
}

// List returns up to limit jobs, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]database.Job, error) {
	return m.store.ListJobs(ctx, limit)
}

// Cancel stops a queued or running job.
func (m *Manager) Cancel(id string) error {
	c, ok := m.dispatcher.(Canceler)
	if !ok {
		return ErrCancelUnsupported
	}
	if !c.Cancel(id) {
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	logging.Job(id).Info("Cancellation requested")
	return nil
}

// Close stops the dispatcher. For the in-process dispatcher this cancels
// running jobs and waits for their results to be published.
func (m *Manager) Close() error {
	return m.dispatcher.Close()
}
