package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"media-converter/internal/logging"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the minimum response size in bytes before compression is applied
	MinSize int
	// Level is the gzip compression level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// CompressibleTypes is a list of content types that should be compressed
	CompressibleTypes []string
	// Skip bypasses compression for matching requests. Nil means isEventStream.
	Skip func(*http.Request) bool
}

// DefaultCompressionConfig compresses JSON job listings and metadata. Event
// streams are never compressed.
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize: 1024,
		Level:   gzip.DefaultCompression,
		CompressibleTypes: []string{
			"application/json",
			"application/problem+json",
			"text/plain",
		},
		Skip: isEventStream,
	}
}

// newWriterPool returns a pool of gzip writers at the given level. An invalid
// level falls back to gzip.DefaultCompression.
func newWriterPool(level int) *sync.Pool {
	if _, err := gzip.NewWriterLevel(io.Discard, level); err != nil {
		level = gzip.DefaultCompression
	}
	return &sync.Pool{
		New: func() interface{} {
			w, _ := gzip.NewWriterLevel(io.Discard, level)
			return w
		},
	}
}

// gzipResponseWriter buffers up to MinSize bytes, then commits to either a
// gzip or a plain response.
type gzipResponseWriter struct {
	http.ResponseWriter
	gzipWriter *gzip.Writer
	pool       *sync.Pool
	config     CompressionConfig
	buffer     []byte
	statusCode int
	committed  bool
}

func newGzipResponseWriter(w http.ResponseWriter, config CompressionConfig, pool *sync.Pool) *gzipResponseWriter {
	return &gzipResponseWriter{
		ResponseWriter: w,
		pool:           pool,
		config:         config,
		statusCode:     http.StatusOK,
		buffer:         make([]byte, 0, config.MinSize+1),
	}
}

// WriteHeader records the status; it is sent when the response commits.
func (g *gzipResponseWriter) WriteHeader(statusCode int) {
	if g.committed {
		return
	}
	g.statusCode = statusCode
}

func (g *gzipResponseWriter) Write(data []byte) (int, error) {
	if g.committed {
		if g.gzipWriter != nil {
			return g.gzipWriter.Write(data)
		}
		return g.ResponseWriter.Write(data)
	}

	g.buffer = append(g.buffer, data...)
	if len(g.buffer) > g.config.MinSize {
		g.commit()
	}
	return len(data), nil
}

// compressible reports whether the buffered response is worth compressing.
func (g *gzipResponseWriter) compressible() bool {
	if len(g.buffer) < g.config.MinSize || !bodyAllowed(g.statusCode) {
		return false
	}
	h := g.Header()
	if h.Get("Content-Encoding") != "" {
		return false
	}

	mediaType, _, _ := strings.Cut(h.Get("Content-Type"), ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if mediaType == "" {
		return false
	}
	for _, t := range g.config.CompressibleTypes {
		if mediaType == t {
			return true
		}
	}
	return false
}

// commit sends the status and the buffered bytes, compressed or not.
func (g *gzipResponseWriter) commit() {
	if g.committed {
		return
	}
	g.committed = true

	h := g.Header()
	h.Add("Vary", "Accept-Encoding")

	if !g.compressible() {
		g.ResponseWriter.WriteHeader(g.statusCode)
		if len(g.buffer) > 0 {
			if _, err := g.ResponseWriter.Write(g.buffer); err != nil {
				logging.Debug("response write failed: %v", err)
			}
		}
		g.buffer = nil
		return
	}

	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")

	g.gzipWriter = g.pool.Get().(*gzip.Writer)
	g.gzipWriter.Reset(g.ResponseWriter)
	g.ResponseWriter.WriteHeader(g.statusCode)
	if _, err := g.gzipWriter.Write(g.buffer); err != nil {
		logging.Debug("gzip write failed: %v", err)
	}
	g.buffer = nil
}

// Close commits the response and returns the gzip writer to the pool.
func (g *gzipResponseWriter) Close() error {
	g.commit()

	if g.gzipWriter == nil {
		return nil
	}
	err := g.gzipWriter.Close()
	g.pool.Put(g.gzipWriter)
	g.gzipWriter = nil
	return err
}

// Flush implements http.Flusher
func (g *gzipResponseWriter) Flush() {
	g.commit()

	if g.gzipWriter != nil {
		if err := g.gzipWriter.Flush(); err != nil {
			logging.Debug("gzip flush failed: %v", err)
		}
	}
	if flusher, ok := g.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

// bodyAllowed reports whether a response with this status may carry a body.
func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

// acceptsGzip parses Accept-Encoding, honoring an explicit q=0 refusal.
func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		coding = strings.ToLower(strings.TrimSpace(coding))
		if coding != "gzip" && coding != "*" {
			continue
		}
		if q, ok := strings.CutPrefix(strings.ReplaceAll(params, " ", ""), "q="); ok {
			if v, err := strconv.ParseFloat(q, 64); err == nil && v == 0 {
				return false
			}
		}
		return true
	}
	return false
}

// isEventStream reports whether r asks for Server-Sent Events, which must
// reach the client unbuffered.
func isEventStream(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/event-stream") ||
		strings.HasSuffix(r.URL.Path, "/events")
}

// Compression returns a middleware that compresses responses using gzip
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	pool := newWriterPool(config.Level)
	skip := config.Skip
	if skip == nil {
		skip = isEventStream
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead || !acceptsGzip(r.Header.Get("Accept-Encoding")) || skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			gzw := newGzipResponseWriter(w, config, pool)
			defer func() {
				if err := gzw.Close(); err != nil {
					logging.Debug("gzip close failed: %v", err)
				}
			}()
			next.ServeHTTP(gzw, r)
		})
	}
}
