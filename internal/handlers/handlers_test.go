package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"media-converter/internal/capability"
	"media-converter/internal/converter"
	"media-converter/internal/database"
	"media-converter/internal/events"
	"media-converter/internal/ffmpeg"
	"media-converter/internal/jobs"
	"media-converter/internal/metrics"
)

// fakeJobs is an in-memory JobService.
type fakeJobs struct {
	mu        sync.Mutex
	jobs      map[string]*database.Job
	order     []string
	submitErr error
	cancelErr error
	cancelled []string
	nextID    int
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[string]*database.Job)}
}

func (f *fakeJobs) Submit(_ context.Context, req converter.Request) (converter.Request, error) {
	if f.submitErr != nil {
		return req, f.submitErr
	}
	kind, err := converter.ParseKind(req.Kind)
	if err != nil {
		return req, err
	}
	if err := req.Validate(); err != nil {
		return req, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	req.ID = fmt.Sprintf("job-%d", f.nextID)
	req.Kind = kind.Tag()
	f.jobs[req.ID] = &database.Job{ID: req.ID, Request: req, State: database.JobQueued, CreatedAt: time.Now()}
	f.order = append(f.order, req.ID)
	return req, nil
}

func (f *fakeJobs) put(job database.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = &job
	f.order = append(f.order, job.ID)
}

func (f *fakeJobs) Get(_ context.Context, id string) (*database.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, database.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (f *fakeJobs) List(_ context.Context, limit int) ([]database.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []database.Job{}
	for i := len(f.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, *f.jobs[f.order[i]])
	}
	return out, nil
}

func (f *fakeJobs) Cancel(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

type fakeProber struct {
	md  ffmpeg.Metadata
	err error
}

func (p fakeProber) Metadata(context.Context, string) (ffmpeg.Metadata, error) {
	return p.md, p.err
}

type fakeStore struct {
	err error
}

func (s fakeStore) Ping(context.Context) error { return s.err }

type fakeStats metrics.Stats

func (s fakeStats) GetStats() metrics.Stats { return metrics.Stats(s) }

type testServer struct {
	h      *Handlers
	router *mux.Router
	jobs   *fakeJobs
	hub    *events.Hub
}

func newTestServer(t *testing.T, mutate func(*Deps)) *testServer {
	t.Helper()

	hub := events.NewHub(16)
	t.Cleanup(hub.Close)

	fj := newFakeJobs()
	deps := Deps{
		Jobs:   fj,
		Events: hub,
		Prober: fakeProber{},
		Capabilities: capability.New(func(_ context.Context, encoder string) bool {
			return encoder == "h264_nvenc"
		}),
		Store:        fakeStore{},
		Stats:        fakeStats{Queued: 1, Running: 2, Succeeded: 3, Failed: 4},
		QueueBackend: "local",
	}
	if mutate != nil {
		mutate(&deps)
	}

	h := New(deps)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return &testServer{h: h, router: router, jobs: fj, hub: hub}
}

func (s *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body["error"]
}

func TestSubmitJob(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitErr  error
		wantStatus int
		wantError  string
	}{
		{
			name:       "Accepted",
			body:       `{"inputPath":"/media/in.mov","targetBytes":8000000,"kind":"MP4"}`,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "Legacy video alias",
			body:       `{"inputPath":"/media/in.mov","targetBytes":8000000,"kind":"video"}`,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "Unknown kind",
			body:       `{"inputPath":"/media/in.mov","targetBytes":8000000,"kind":"avi"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "avi",
		},
		{
			name:       "Missing target",
			body:       `{"inputPath":"/media/in.mov","kind":"gif"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "target size",
		},
		{
			name:       "Malformed JSON",
			body:       `{"inputPath":`,
			wantStatus: http.StatusBadRequest,
			wantError:  "Invalid request body",
		},
		{
			name:       "Dispatch failure",
			body:       `{"inputPath":"/media/in.mov","targetBytes":1,"kind":"gif"}`,
			submitErr:  fmt.Errorf("%w: redis down", jobs.ErrDispatch),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "Store failure",
			body:       `{"inputPath":"/media/in.mov","targetBytes":1,"kind":"gif"}`,
			submitErr:  errors.New("disk full"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			s.jobs.submitErr = tt.submitErr

			w := s.do(http.MethodPost, "/api/jobs", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}

			if tt.wantStatus != http.StatusAccepted {
				if msg := decodeError(t, w); tt.wantError != "" && !strings.Contains(msg, tt.wantError) {
					t.Errorf("Expected error containing %q, got %q", tt.wantError, msg)
				}
				return
			}

			var resp SubmitJobResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.ID == "" {
				t.Error("Expected a job ID")
			}
			if resp.Kind != "mp4" {
				t.Errorf("Expected normalized kind mp4, got %q", resp.Kind)
			}
			if loc := w.Header().Get("Location"); loc != "/api/jobs/"+resp.ID {
				t.Errorf("Location = %q", loc)
			}
		})
	}
}

func TestListJobs(t *testing.T) {
	s := newTestServer(t, nil)
	for i := 0; i < 3; i++ {
		s.do(http.MethodPost, "/api/jobs", `{"inputPath":"/in.mov","targetBytes":10,"kind":"webp"}`)
	}

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLen    int
	}{
		{"All", "", http.StatusOK, 3},
		{"Limited", "?limit=2", http.StatusOK, 2},
		{"Bad limit", "?limit=many", http.StatusBadRequest, 0},
		{"Negative limit", "?limit=-1", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodGet, "/api/jobs"+tt.query, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var list []database.Job
			if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if len(list) != tt.wantLen {
				t.Errorf("Expected %d jobs, got %d", tt.wantLen, len(list))
			}
			if len(list) > 0 && list[0].ID != "job-3" {
				t.Errorf("Expected newest job first, got %s", list[0].ID)
			}
		})
	}
}

func TestGetJob(t *testing.T) {
	s := newTestServer(t, nil)
	s.put(database.Job{ID: "done", State: database.JobSucceeded, Progress: 100, OutputPath: "/out/a.mp4"})

	w := s.do(http.MethodGet, "/api/jobs/done", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var job database.Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if job.OutputPath != "/out/a.mp4" || job.State != database.JobSucceeded {
		t.Errorf("Unexpected job: %+v", job)
	}

	if w := s.do(http.MethodGet, "/api/jobs/missing", ""); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown job, got %d", w.Code)
	}
}

func (s *testServer) put(job database.Job) { s.jobs.put(job) }

func TestCancelJob(t *testing.T) {
	tests := []struct {
		name       string
		job        *database.Job
		target     string
		cancelErr  error
		wantStatus int
	}{
		{"Running job", &database.Job{ID: "a", State: database.JobRunning}, "a", nil, http.StatusAccepted},
		{"Unknown job", nil, "zzz", nil, http.StatusNotFound},
		{"Finished job", &database.Job{ID: "b", State: database.JobFailed}, "b", nil, http.StatusConflict},
		{"Backend cannot cancel", &database.Job{ID: "c", State: database.JobQueued}, "c", jobs.ErrCancelUnsupported, http.StatusNotImplemented},
		{"Not running here", &database.Job{ID: "d", State: database.JobRunning}, "d", fmt.Errorf("%w: d", jobs.ErrNotRunning), http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			if tt.job != nil {
				s.put(*tt.job)
			}
			s.jobs.cancelErr = tt.cancelErr

			w := s.do(http.MethodDelete, "/api/jobs/"+tt.target, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus == http.StatusAccepted && (len(s.jobs.cancelled) != 1 || s.jobs.cancelled[0] != tt.target) {
				t.Errorf("Expected cancel for %s, got %v", tt.target, s.jobs.cancelled)
			}
		})
	}
}

func TestGetCapabilities(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/capabilities", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp CapabilitiesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(resp.Encoders) != len(capability.Kinds()) {
		t.Fatalf("Expected every capability to be probed, got %+v", resp.Encoders)
	}
	for _, st := range resp.Encoders {
		want := st.Encoder == "h264_nvenc"
		if st.Available != want {
			t.Errorf("%s available = %v, want %v", st.Kind, st.Available, want)
		}
	}
	if strings.Join(resp.Kinds, ",") != "mp4,mov,mkv,hevc,webp,gif" {
		t.Errorf("Unexpected kinds: %v", resp.Kinds)
	}
}

func TestGetCapabilitiesRedisBackend(t *testing.T) {
	probed := 0
	s := newTestServer(t, func(d *Deps) {
		d.QueueBackend = "redis"
		d.Capabilities = capability.New(func(context.Context, string) bool {
			probed++
			return true
		})
	})

	w := s.do(http.MethodGet, "/api/capabilities", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp CapabilitiesResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if probed != 0 {
		t.Errorf("Expected no local encoder probes, got %d", probed)
	}
	if len(resp.Encoders) != 0 {
		t.Errorf("Expected no encoders, got %+v", resp.Encoders)
	}
	if resp.Note == "" {
		t.Error("Expected a note pointing at the workers")
	}
	if len(resp.Kinds) != len(converter.Kinds()) {
		t.Errorf("Expected every kind listed, got %v", resp.Kinds)
	}
}

func TestGetVersion(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/version", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %q", ct)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Expected Cache-Control no-cache, got %q", cc)
	}

	var resp VersionResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if resp.QueueBackend != "local" {
		t.Errorf("QueueBackend = %q, want local", resp.QueueBackend)
	}
	if resp.GoVersion == "" || resp.OS == "" {
		t.Errorf("Expected build info fields, got %+v", resp.BuildInfo)
	}
}

func TestMetricsHandler(t *testing.T) {
	s := newTestServer(t, nil)

	w := httptest.NewRecorder()
	s.h.MetricsHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("Expected default registry metrics in the scrape")
	}
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSONError(w, "nope", http.StatusTeapot)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected 418, got %d", w.Code)
	}
	if got := decodeError(t, w); got != "nope" {
		t.Errorf("Expected error 'nope', got %q", got)
	}
}
