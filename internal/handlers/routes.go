package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes adds the health, version and /api routes to r. The /api
// subrouter is wrapped in AuthMiddleware; health probes stay open.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(h.AuthMiddleware)

	api.HandleFunc("/jobs", h.SubmitJob).Methods(http.MethodPost).Name("submit-job")
	api.HandleFunc("/jobs", h.ListJobs).Methods(http.MethodGet).Name("list-jobs")
	api.HandleFunc("/jobs/{id}", h.GetJob).Methods(http.MethodGet).Name("get-job")
	api.HandleFunc("/jobs/{id}", h.CancelJob).Methods(http.MethodDelete).Name("cancel-job")
	api.HandleFunc("/jobs/{id}/events", h.JobEvents).Methods(http.MethodGet).Name("job-events")

	api.HandleFunc("/capabilities", h.GetCapabilities).Methods(http.MethodGet)
	api.HandleFunc("/media/info", h.GetMediaInfo).Methods(http.MethodGet)
	api.HandleFunc("/media/size", h.GetMediaSize).Methods(http.MethodGet)
}
