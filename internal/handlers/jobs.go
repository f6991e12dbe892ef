package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"media-converter/internal/converter"
	"media-converter/internal/database"
	"media-converter/internal/jobs"
	"media-converter/internal/logging"

	"github.com/gorilla/mux"
)

const maxRequestBody = 1 << 20

// SubmitJobResponse is returned when a job is accepted.
type SubmitJobResponse struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// SubmitJob accepts a conversion request.
// POST /api/jobs
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req converter.Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	accepted, err := h.jobs.Submit(r.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, converter.ErrUnsupportedKind), errors.Is(err, converter.ErrInvalidRequest):
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, jobs.ErrDispatch):
		logging.Error("Failed to dispatch job: %v", err)
		writeJSONError(w, "Job could not be queued", http.StatusServiceUnavailable)
		return
	default:
		logging.Error("Failed to submit job: %v", err)
		writeJSONError(w, "Failed to submit job", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Location", "/api/jobs/"+accepted.ID)
	writeJSONResponse(w, http.StatusAccepted, SubmitJobResponse{ID: accepted.ID, Kind: accepted.Kind})
}

// ListJobs returns recent jobs, newest first.
// GET /api/jobs?limit=N
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	list, err := h.jobs.List(r.Context(), limit)
	if err != nil {
		logging.Error("Failed to list jobs: %v", err)
		writeJSONError(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}
	writeJSONResponse(w, http.StatusOK, list)
}

// GetJob returns one job.
// GET /api/jobs/{id}
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONResponse(w, http.StatusOK, job)
}

// CancelJob stops a queued or running job. The job still finishes with a
// result event once the encoder has been stopped.
// DELETE /api/jobs/{id}
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookupJob(w, r)
	if !ok {
		return
	}
	if job.State.Finished() {
		writeJSONError(w, "Job has already finished", http.StatusConflict)
		return
	}

	err := h.jobs.Cancel(job.ID)
	switch {
	case err == nil:
		writeJSONResponse(w, http.StatusAccepted, map[string]string{"id": job.ID, "status": "cancelling"})
	case errors.Is(err, jobs.ErrCancelUnsupported):
		writeJSONError(w, err.Error(), http.StatusNotImplemented)
	case errors.Is(err, jobs.ErrNotRunning):
		writeJSONError(w, "Job is not running on this server", http.StatusConflict)
	default:
		logging.Error("Failed to cancel job %s: %v", job.ID, err)
		writeJSONError(w, "Failed to cancel job", http.StatusInternalServerError)
	}
}

// lookupJob loads the job named by the {id} path variable and writes the
// error response itself when it cannot.
func (h *Handlers) lookupJob(w http.ResponseWriter, r *http.Request) (*database.Job, bool) {
	id := mux.Vars(r)["id"]
	if id == "" {
		writeJSONError(w, "Job ID is required", http.StatusBadRequest)
		return nil, false
	}

	job, err := h.jobs.Get(r.Context(), id)
	if errors.Is(err, database.ErrJobNotFound) {
		writeJSONError(w, "Job not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		logging.Error("Failed to load job %s: %v", id, err)
		writeJSONError(w, "Failed to load job", http.StatusInternalServerError)
		return nil, false
	}
	return job, true
}
