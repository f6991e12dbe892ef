package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"media-converter/internal/converter"
	"media-converter/internal/filesystem"
	"media-converter/internal/logging"
)

// FileSizeResponse is returned by GetMediaSize.
type FileSizeResponse struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// statMediaPath resolves the ?path= query parameter to a regular file and
// writes the error response itself when it cannot.
func statMediaPath(w http.ResponseWriter, r *http.Request) (string, os.FileInfo, bool) {
	raw := r.URL.Query().Get("path")
	if raw == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return "", nil, false
	}
	path := filepath.Clean(raw)

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if errors.Is(err, fs.ErrNotExist) {
		writeJSONError(w, "File not found", http.StatusNotFound)
		return "", nil, false
	}
	if err != nil {
		logging.Warn("Failed to stat %s: %v", path, err)
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return "", nil, false
	}
	if info.IsDir() {
		writeJSONError(w, "path is a directory", http.StatusBadRequest)
		return "", nil, false
	}
	return path, info, true
}

// GetMediaInfo probes a media file.
// GET /api/media/info?path=
func (h *Handlers) GetMediaInfo(w http.ResponseWriter, r *http.Request) {
	path, _, ok := statMediaPath(w, r)
	if !ok {
		return
	}

	md, err := h.prober.Metadata(r.Context(), path)
	if err != nil {
		logging.Debug("Probe failed for %s: %v", path, err)
		writeJSONError(w, converter.ErrInputResolution.Error()+": "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSONResponse(w, http.StatusOK, md)
}

// GetMediaSize returns the size of a file in bytes.
// GET /api/media/size?path=
func (h *Handlers) GetMediaSize(w http.ResponseWriter, r *http.Request) {
	path, info, ok := statMediaPath(w, r)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, FileSizeResponse{Path: path, Size: info.Size()})
}
