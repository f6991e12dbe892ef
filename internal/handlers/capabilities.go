package handlers

import (
	"net/http"

	"media-converter/internal/capability"
	"media-converter/internal/converter"
	"media-converter/internal/startup"
)

// CapabilitiesResponse lists hardware encoders and supported output kinds.
type CapabilitiesResponse struct {
	Encoders []capability.Status `json:"encoders"`
	Kinds    []string            `json:"kinds"`
	Note     string              `json:"note,omitempty"`
}

const workerProbeNote = "hardware encoders are probed on the queue workers"

// GetCapabilities probes every hardware encoder that has not been probed yet
// and reports the results. With the redis backend the encoders that matter
// belong to the workers, so the encoder list is empty.
// GET /api/capabilities
func (h *Handlers) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	kinds := converter.Kinds()
	resp := CapabilitiesResponse{
		Encoders: []capability.Status{},
		Kinds:    make([]string, 0, len(kinds)),
	}

	if h.backend == startup.BackendRedis {
		resp.Note = workerProbeNote
	} else {
		for _, kind := range capability.Kinds() {
			h.caps.Available(r.Context(), kind)
		}
		resp.Encoders = h.caps.Snapshot()
	}
	for _, k := range kinds {
		resp.Kinds = append(resp.Kinds, k.Tag())
	}

	w.Header().Set("Cache-Control", "no-cache")
	writeJSONResponse(w, http.StatusOK, resp)
}
