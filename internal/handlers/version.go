package handlers

import (
	"net/http"

	"media-converter/internal/startup"
)

// VersionResponse is the build information plus the dispatch backend, which
// tells clients whether jobs run in this process or on queue workers.
type VersionResponse struct {
	startup.BuildInfo
	QueueBackend string `json:"queueBackend"`
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, VersionResponse{
		BuildInfo:    startup.GetBuildInfo(),
		QueueBackend: h.backend,
	})
}
