package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-converter/internal/ffmpeg"
)

func TestGetMediaSize(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(file, []byte(strings.Repeat("x", 1234)), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"Existing file", file, http.StatusOK},
		{"Missing file", filepath.Join(dir, "gone.mov"), http.StatusNotFound},
		{"Directory", dir, http.StatusBadRequest},
		{"No path", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)

			w := s.do(http.MethodGet, "/api/media/size?path="+url.QueryEscape(tt.path), "")
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp FileSizeResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if resp.Size != 1234 || resp.Path != file {
				t.Errorf("Unexpected response: %+v", resp)
			}
		})
	}
}

func TestGetMediaInfo(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(file, []byte("not really video"), 0o644); err != nil {
		t.Fatal(err)
	}

	md := ffmpeg.Metadata{
		FormatName: "mov,mp4,m4a,3gp,3g2,mj2",
		Duration:   12.5,
		Video:      &ffmpeg.VideoStream{Codec: "h264", Width: 1920, Height: 1080, FrameRate: 30},
	}

	tests := []struct {
		name       string
		prober     fakeProber
		path       string
		wantStatus int
	}{
		{"Probed", fakeProber{md: md}, file, http.StatusOK},
		{"Probe fails", fakeProber{err: errors.New("moov atom not found")}, file, http.StatusUnprocessableEntity},
		{"Missing file", fakeProber{md: md}, filepath.Join(dir, "nope.mp4"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, func(d *Deps) { d.Prober = tt.prober })

			w := s.do(http.MethodGet, "/api/media/info?path="+url.QueryEscape(tt.path), "")
			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d (%s)", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var got ffmpeg.Metadata
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("Failed to decode: %v", err)
			}
			if got.Video == nil || got.Video.Width != 1920 || got.Duration != 12.5 {
				t.Errorf("Unexpected metadata: %+v", got)
			}
		})
	}
}
