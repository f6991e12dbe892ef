package handlers

import (
	"context"
	"time"

	"media-converter/internal/capability"
	"media-converter/internal/converter"
	"media-converter/internal/database"
	"media-converter/internal/events"
	"media-converter/internal/ffmpeg"
	"media-converter/internal/metrics"
	"media-converter/internal/streaming"
)

// JobService submits and tracks conversion jobs. *jobs.Manager satisfies it.
type JobService interface {
	Submit(ctx context.Context, req converter.Request) (converter.Request, error)
	Get(ctx context.Context, id string) (*database.Job, error)
	List(ctx context.Context, limit int) ([]database.Job, error)
	Cancel(id string) error
}

// EventSource streams events for one job. *events.Hub satisfies it.
type EventSource interface {
	Subscribe(jobID string) (<-chan events.Event, func())
}

// MediaProber reads media metadata. *ffmpeg.Prober satisfies it.
type MediaProber interface {
	Metadata(ctx context.Context, path string) (ffmpeg.Metadata, error)
}

// Capabilities reports hardware encoder support. *capability.Cache satisfies it.
type Capabilities interface {
	Available(ctx context.Context, kind capability.Kind) bool
	Snapshot() []capability.Status
}

// Pinger checks that the job store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the handlers are built on.
type Deps struct {
	Jobs         JobService
	Events       EventSource
	Prober       MediaProber
	Capabilities Capabilities
	Store        Pinger
	Stats        metrics.StatsProvider

	// TokenHash is the bcrypt hash of the API bearer token. Empty disables auth.
	TokenHash    string
	QueueBackend string
}

type Handlers struct {
	jobs      JobService
	events    EventSource
	prober    MediaProber
	caps      Capabilities
	store     Pinger
	stats     metrics.StatsProvider
	auth      *tokenAuth
	backend   string
	startTime time.Time

	// keepAlive is the SSE comment interval.
	keepAlive time.Duration
	stream    streaming.Config
}

func New(deps Deps) *Handlers {
	return &Handlers{
		jobs:      deps.Jobs,
		events:    deps.Events,
		prober:    deps.Prober,
		caps:      deps.Capabilities,
		store:     deps.Store,
		stats:     deps.Stats,
		auth:      newTokenAuth(deps.TokenHash),
		backend:   deps.QueueBackend,
		startTime: time.Now(),
		keepAlive: 15 * time.Second,
		stream:    streaming.DefaultConfig(),
	}
}
