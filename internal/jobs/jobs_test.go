package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"media-converter/internal/converter"
	"media-converter/internal/database"
	"media-converter/internal/events"
)

// memoryStore is an in-memory History.
type memoryStore struct {
	mu      sync.Mutex
	jobs    map[string]*database.Job
	order   []string
	updates int
	pruned  []int
	failOn  string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobs: make(map[string]*database.Job)}
}

func (s *memoryStore) CreateJob(_ context.Context, req converter.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn == "create" {
		return errors.New("disk full")
	}
	s.jobs[req.ID] = &database.Job{ID: req.ID, Request: req, State: database.JobQueued, CreatedAt: time.Now()}
	s.order = append(s.order, req.ID)
	return nil
}

func (s *memoryStore) UpdateProgress(_ context.Context, id string, pct float64, status converter.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	job, ok := s.jobs[id]
	if !ok || job.State.Finished() {
		return nil
	}
	job.State = database.JobRunning
	job.Status = status
	if pct > job.Progress {
		job.Progress = pct
	}
	return nil
}

func (s *memoryStore) CompleteJob(_ context.Context, res converter.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[res.JobID]
	if !ok || job.State.Finished() {
		return nil
	}
	job.State = database.JobFailed
	if res.Success {
		job.State = database.JobSucceeded
		job.Progress = 100
	}
	job.OutputPath, job.OutputSize = res.OutputPath, res.OutputSize
	job.Error, job.Reason, job.Strategy = res.Error, res.Reason, res.Strategy
	return nil
}

func (s *memoryStore) PruneJobs(_ context.Context, keep int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruned = append(s.pruned, keep)
	return 0, nil
}

func (s *memoryStore) GetJob(_ context.Context, id string) (*database.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", database.ErrJobNotFound, id)
	}
	cp := *job
	return &cp, nil
}

func (s *memoryStore) ListJobs(_ context.Context, limit int) ([]database.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]database.Job, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *s.jobs[s.order[i]])
	}
	return out, nil
}

func (s *memoryStore) job(t *testing.T, id string) database.Job {
	t.Helper()
	job, err := s.GetJob(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return *job
}

// fakeConverter reports a few progress steps, then succeeds or blocks until
// cancelled when block is set.
type fakeConverter struct {
	block   bool
	started chan string

	mu      sync.Mutex
	active  int
	maxSeen int
}

func (f *fakeConverter) Convert(ctx context.Context, req converter.Request, onProgress converter.ProgressFunc) converter.Result {
	f.mu.Lock()
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.started != nil {
		f.started <- req.ID
	}

	onProgress(converter.Progress{JobID: req.ID, Progress: 0, Status: converter.StatusAnalyzing})
	onProgress(converter.Progress{JobID: req.ID, Progress: 5, Status: converter.StatusConverting})
	onProgress(converter.Progress{JobID: req.ID, Progress: 5.4, Status: converter.StatusConverting})
	onProgress(converter.Progress{JobID: req.ID, Progress: 50, Status: converter.StatusConverting})

	if f.block {
		<-ctx.Done()
		return converter.Result{JobID: req.ID, Error: ctx.Err().Error(), Reason: converter.Reason(ctx.Err())}
	}

	onProgress(converter.Progress{JobID: req.ID, Progress: 100, Status: converter.StatusCompleted})
	return converter.Result{JobID: req.ID, Success: true, OutputPath: "/out/" + req.ID + ".mp4", OutputSize: 42, Strategy: "two_pass"}
}

func (f *fakeConverter) peak() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}

func validRequest() converter.Request {
	return converter.Request{InputPath: "/media/in.mp4", TargetBytes: 1_000_000, Kind: "VIDEO"}
}

// waitResult subscribes before returning, then blocks for the result event.
func waitResult(t *testing.T, hub *events.Hub, id string) converter.Result {
	t.Helper()
	ch, cancel := hub.Subscribe(id)
	defer cancel()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("subscription for %s closed without a result", id)
			}
			if ev.Terminal() {
				return *ev.Result
			}
		case <-timeout:
			t.Fatalf("no result for job %s", id)
		}
	}
}

type harness struct {
	store      *memoryStore
	hub        *events.Hub
	conv       *fakeConverter
	dispatcher *LocalDispatcher
	manager    *Manager
}

func newHarness(t *testing.T, conv *fakeConverter, concurrency int) *harness {
	t.Helper()
	store := newMemoryStore()
	hub := events.NewHub(0)
	runner := NewRunner(conv, NewRecorder(store, hub, 50))
	dispatcher := NewLocalDispatcher(runner, concurrency)
	h := &harness{
		store:      store,
		hub:        hub,
		conv:       conv,
		dispatcher: dispatcher,
		manager:    NewManager(store, dispatcher),
	}
	t.Cleanup(func() { _ = h.manager.Close() })
	return h
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	h := newHarness(t, &fakeConverter{}, 2)

	req, err := h.manager.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if req.ID == "" {
		t.Fatal("Submit() did not assign an id")
	}
	if req.Kind != "mp4" {
		t.Errorf("Kind = %q, want normalized mp4", req.Kind)
	}

	res := waitResult(t, h.hub, req.ID)
	if !res.Success || res.OutputSize != 42 {
		t.Errorf("result = %+v", res)
	}

	job := h.store.job(t, req.ID)
	if job.State != database.JobSucceeded || job.Progress != 100 {
		t.Errorf("stored job = %+v", job)
	}
	if len(h.store.pruned) != 1 || h.store.pruned[0] != 50 {
		t.Errorf("pruned = %v, want [50]", h.store.pruned)
	}
}

func TestSubmitRejectsBeforeWriting(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*converter.Request)
		wantErr error
	}{
		{"unknown kind", func(r *converter.Request) { r.Kind = "avi" }, converter.ErrUnsupportedKind},
		{"zero target", func(r *converter.Request) { r.TargetBytes = 0 }, converter.ErrInvalidRequest},
		{"negative trim", func(r *converter.Request) { v := -1.0; r.TrimStart = &v }, converter.ErrInvalidRequest},
		{"no input", func(r *converter.Request) { r.InputPath = "" }, converter.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeConverter{}, 1)
			req := validRequest()
			tt.mutate(&req)

			_, err := h.manager.Submit(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Submit() error = %v, want %v", err, tt.wantErr)
			}
			if len(h.store.order) != 0 {
				t.Errorf("rejected request was stored: %v", h.store.order)
			}
		})
	}
}

func TestSubmitUnknownKindNamesTag(t *testing.T) {
	h := newHarness(t, &fakeConverter{}, 1)
	req := validRequest()
	req.Kind = "avi"

	_, err := h.manager.Submit(context.Background(), req)
	if err == nil || !strings.Contains(err.Error(), "avi") {
		t.Errorf("error %v should name the tag", err)
	}
}

func TestSubmitStoreFailure(t *testing.T) {
	h := newHarness(t, &fakeConverter{}, 1)
	h.store.failOn = "create"

	if _, err := h.manager.Submit(context.Background(), validRequest()); err == nil {
		t.Error("expected error when the job cannot be recorded")
	}
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, converter.Request) error { return errors.New("redis down") }
func (failingDispatcher) Close() error                                       { return nil }

func TestSubmitDispatchFailureMarksJobFailed(t *testing.T) {
	store := newMemoryStore()
	m := NewManager(store, failingDispatcher{})

	req, err := m.Submit(context.Background(), validRequest())
	if !errors.Is(err, ErrDispatch) {
		t.Fatalf("Submit() error = %v, want ErrDispatch", err)
	}
	job := store.job(t, req.ID)
	if job.State != database.JobFailed {
		t.Errorf("State = %q, want failed", job.State)
	}
	if !errors.Is(m.Cancel(req.ID), ErrCancelUnsupported) {
		t.Error("Cancel() should be unsupported for a dispatcher without Canceler")
	}
}

func TestConcurrencyIsBounded(t *testing.T) {
	conv := &fakeConverter{}
	h := newHarness(t, conv, 2)

	var ids []string
	for i := 0; i < 6; i++ {
		req, err := h.manager.Submit(context.Background(), validRequest())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, req.ID)
	}
	for _, id := range ids {
		if res := waitResult(t, h.hub, id); !res.Success {
			t.Errorf("job %s failed: %+v", id, res)
		}
	}
	if conv.peak() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", conv.peak())
	}
}

func TestCancelRunningJob(t *testing.T) {
	conv := &fakeConverter{block: true, started: make(chan string, 1)}
	h := newHarness(t, conv, 1)

	req, err := h.manager.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}
	<-conv.started

	if err := h.manager.Cancel(req.ID); err != nil {
		t.Fatalf("Cancel() error: %v", err)
	}
	res := waitResult(t, h.hub, req.ID)
	if res.Success || res.Reason != "cancelled" {
		t.Errorf("result = %+v, want cancelled failure", res)
	}
	if job := h.store.job(t, req.ID); job.State != database.JobFailed {
		t.Errorf("State = %q, want failed", job.State)
	}
}

func TestCancelUnknownJob(t *testing.T) {
	h := newHarness(t, &fakeConverter{}, 1)
	if err := h.manager.Cancel("nope"); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Cancel() error = %v, want ErrNotRunning", err)
	}
}

func TestCloseCancelsQueuedAndRunningJobs(t *testing.T) {
	conv := &fakeConverter{block: true, started: make(chan string, 4)}
	h := newHarness(t, conv, 1)

	running, err := h.manager.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}
	<-conv.started
	queued, err := h.manager.Submit(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}

	if err := h.manager.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	for _, id := range []string{running.ID, queued.ID} {
		job := h.store.job(t, id)
		if job.State != database.JobFailed || job.Reason != "cancelled" {
			t.Errorf("job %s = %+v, want cancelled failure", id, job)
		}
	}

	if _, err := h.manager.Submit(context.Background(), validRequest()); !errors.Is(err, ErrDispatch) {
		t.Errorf("Submit() after Close error = %v, want ErrDispatch", err)
	}
	if h.dispatcher.Running() != 0 {
		t.Errorf("Running() = %d after Close", h.dispatcher.Running())
	}
}

func TestRecorderThrottlesProgressWrites(t *testing.T) {
	store := newMemoryStore()
	_ = store.CreateJob(context.Background(), converter.Request{ID: "j"})
	rec := NewRecorder(store, nil, 0)

	for _, p := range []converter.Progress{
		{JobID: "j", Progress: 0, Status: converter.StatusAnalyzing},
		{JobID: "j", Progress: 0, Status: converter.StatusAnalyzing},   // duplicate
		{JobID: "j", Progress: 5, Status: converter.StatusConverting},  // status change
		{JobID: "j", Progress: 5.5, Status: converter.StatusConverting}, // below step
		{JobID: "j", Progress: 6, Status: converter.StatusConverting},
	} {
		if err := rec.Publish(context.Background(), events.FromProgress(p)); err != nil {
			t.Fatal(err)
		}
	}

	if store.updates != 3 {
		t.Errorf("store updates = %d, want 3", store.updates)
	}
	if len(store.pruned) != 0 {
		t.Error("history limit 0 should never prune")
	}
}

func TestManagerList(t *testing.T) {
	h := newHarness(t, &fakeConverter{}, 1)

	var ids []string
	for i := 0; i < 3; i++ {
		req, err := h.manager.Submit(context.Background(), validRequest())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, req.ID)
	}

	jobs, err := h.manager.List(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].ID != ids[2] {
		t.Errorf("List() = %v, want newest two", jobIDs(jobs))
	}

	if _, err := h.manager.Get(context.Background(), "missing"); !errors.Is(err, database.ErrJobNotFound) {
		t.Errorf("Get() error = %v, want ErrJobNotFound", err)
	}
}

func TestConvertTaskRoundTrip(t *testing.T) {
	start := 2.5
	req := converter.Request{ID: "abc", InputPath: "/in.mov", TargetBytes: 5, Kind: "gif", TrimStart: &start}

	task, err := NewConvertTask(req)
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TaskConvert {
		t.Errorf("Type() = %q, want %q", task.Type(), TaskConvert)
	}

	var decoded converter.Request
	if err := json.Unmarshal(task.Payload(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ID != "abc" || decoded.Kind != "gif" || decoded.TrimStart == nil || *decoded.TrimStart != 2.5 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestTaskHandler(t *testing.T) {
	hub := events.NewHub(0)
	handler := NewTaskHandler(NewRunner(&fakeConverter{}, hub))

	req := converter.Request{ID: "queued-1", InputPath: "/in.mp4", TargetBytes: 10, Kind: "mp4"}
	task, err := NewConvertTask(req)
	if err != nil {
		t.Fatal(err)
	}

	if err := handler.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("ProcessTask() error: %v", err)
	}
	ev, ok := hub.Last("queued-1")
	if !ok || !ev.Terminal() || !ev.Result.Success {
		t.Errorf("last event = %+v, %v", ev, ok)
	}
}

func TestKindLabel(t *testing.T) {
	tests := map[string]string{"video": "mp4", "HEVC": "hevc", "avi": "unknown", "": "unknown"}
	for in, want := range tests {
		if got := kindLabel(in); got != want {
			t.Errorf("kindLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func jobIDs(jobs []database.Job) []string {
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	sort.Strings(ids)
	return ids
}
