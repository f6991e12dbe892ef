package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"media-converter/internal/events"
	"media-converter/internal/handlers"
	"media-converter/internal/startup"
)

func TestSetupRouterRoutes(t *testing.T) {
	router := setupRouter(handlers.New(handlers.Deps{}))

	routes, err := startup.GetRoutes(router)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}

	got := make(map[string]bool)
	for _, r := range routes {
		got[r.Method+" "+r.Path] = true
	}

	want := []string{
		"GET /health",
		"GET /healthz",
		"GET /livez",
		"HEAD /livez",
		"GET /readyz",
		"GET /version",
		"POST /api/jobs",
		"GET /api/jobs",
		"GET /api/jobs/{id}",
		"DELETE /api/jobs/{id}",
		"GET /api/jobs/{id}/events",
		"GET /api/capabilities",
		"GET /api/media/info",
		"GET /api/media/size",
	}
	for _, route := range want {
		if !got[route] {
			t.Errorf("route %q not registered", route)
		}
	}
}

func TestAuthOnlyGuardsAPI(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	router := setupRouter(handlers.New(handlers.Deps{TokenHash: string(hash)}))

	tests := []struct {
		name string
		path string
		want int
	}{
		{"liveness is open", "/livez", http.StatusOK},
		{"version is open", "/version", http.StatusOK},
		{"api requires token", "/api/jobs", http.StatusUnauthorized},
		{"unknown route", "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			if rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestBuildHandlerServesRouter(t *testing.T) {
	router := setupRouter(handlers.New(handlers.Deps{}))
	handler := buildHandler(router, &startup.Config{LogHealthChecks: false})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Errorf("GET /livez = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestNewServerTimeouts(t *testing.T) {
	srv := newServer(":0", http.NotFoundHandler())

	if srv.WriteTimeout != 0 {
		t.Errorf("WriteTimeout = %v, want 0 for event streams", srv.WriteTimeout)
	}
	if srv.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout = %v, want 15s", srv.ReadTimeout)
	}
	if srv.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", srv.IdleTimeout)
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Error("ReadHeaderTimeout should be set")
	}
}

func TestMetricsServerRoutes(t *testing.T) {
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	srv := newMetricsServer(":0", metricsHandler)

	for _, path := range []string{"/metrics", "/health"} {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestShutdownEmptyServices(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("shutdown panicked: %v", r)
		}
	}()
	shutdown(&services{})
}

func TestShutdownClosesEventStreams(t *testing.T) {
	hub := events.NewHub(4)
	ch, unsubscribe := hub.Subscribe("job-1")
	defer unsubscribe()

	shutdown(&services{hub: hub})

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected subscription channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed by shutdown")
	}
}
