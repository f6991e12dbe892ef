package handlers

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// tokenAuth checks bearer tokens against a bcrypt hash. The digest of the
// last accepted token is remembered so steady clients do not pay for a
// bcrypt comparison on every request.
type tokenAuth struct {
	hash []byte

	mu       sync.RWMutex
	accepted [sha256.Size]byte
	hasToken bool
}

func newTokenAuth(hash string) *tokenAuth {
	if hash == "" {
		return nil
	}
	return &tokenAuth{hash: []byte(hash)}
}

func (a *tokenAuth) verify(token string) bool {
	digest := sha256.Sum256([]byte(token))

	a.mu.RLock()
	cached := a.hasToken && subtle.ConstantTimeCompare(digest[:], a.accepted[:]) == 1
	a.mu.RUnlock()
	if cached {
		return true
	}

	if bcrypt.CompareHashAndPassword(a.hash, []byte(token)) != nil {
		return false
	}

	a.mu.Lock()
	a.accepted = digest
	a.hasToken = true
	a.mu.Unlock()
	return true
}

// bearerToken extracts the token from an "Authorization: Bearer" header.
// EventSource clients cannot set headers, so ?token= is accepted on event
// streams.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if strings.HasSuffix(r.URL.Path, "/events") {
		return r.URL.Query().Get("token")
	}
	return ""
}

// AuthMiddleware protects API routes with the configured bearer token. It is
// a no-op when no token hash is configured.
func (h *Handlers) AuthMiddleware(next http.Handler) http.Handler {
	if h.auth == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			metrics.AuthAttemptsTotal.WithLabelValues("missing").Inc()
			w.Header().Set("WWW-Authenticate", `Bearer realm="media-converter"`)
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		if !h.auth.verify(token) {
			logging.Warn("Rejected API token from %s for %s", r.RemoteAddr, r.URL.Path)
			metrics.AuthAttemptsTotal.WithLabelValues("failure").Inc()
			w.Header().Set("WWW-Authenticate", `Bearer realm="media-converter", error="invalid_token"`)
			writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		metrics.AuthAttemptsTotal.WithLabelValues("success").Inc()
		next.ServeHTTP(w, r)
	})
}
