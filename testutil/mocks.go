// Package testutil provides fake platform and webhook servers for tests.
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockAPIServer routes requests by path to registered handlers; unknown paths get 404.
type MockAPIServer struct {
	*httptest.Server

	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
}

// NewMockAPIServer starts a mock server that is closed on test cleanup.
func NewMockAPIServer(t *testing.T) *MockAPIServer {
	t.Helper()
	m := &MockAPIServer{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		handler, ok := m.handlers[r.URL.Path]
		m.mu.RUnlock()
		if ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle registers h for path, replacing any previous handler.
func (m *MockAPIServer) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = h
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // test mock response
}

// MockYouTubeLive answers the YouTube search endpoint with one live video,
// or with no items when videoID is empty.
func (m *MockAPIServer) MockYouTubeLive(videoID, title string) {
	m.Handle("/youtube/v3/search", func(w http.ResponseWriter, r *http.Request) {
		items := []interface{}{}
		if videoID != "" {
			items = append(items, map[string]interface{}{
				"id":      map[string]string{"kind": "youtube#video", "videoId": videoID},
				"snippet": map[string]string{"title": title},
			})
		}
		writeJSON(w, map[string]interface{}{"items": items})
	})
}

// MockStreamsResponse adds a handler for the /helix/streams endpoint.
func (m *MockAPIServer) MockStreamsResponse(streams []map[string]interface{}) {
	m.Handle("/helix/streams", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"data": streams})
	})
}

// MockOAuthTokenResponse adds a handler for the OAuth token endpoint.
func (m *MockAPIServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.Handle("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		})
	})
}

// WebhookRecorder is a fake chat webhook that records every posted body.
type WebhookRecorder struct {
	*httptest.Server

	mu     sync.Mutex
	bodies [][]byte
	status int
}

// NewWebhookRecorder starts a recorder answering with status (204 when zero).
func NewWebhookRecorder(t *testing.T, status int) *WebhookRecorder {
	t.Helper()
	if status == 0 {
		status = http.StatusNoContent
	}
	rec := &WebhookRecorder{status: status}
	rec.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		rec.bodies = append(rec.bodies, b)
		rec.mu.Unlock()
		w.WriteHeader(rec.status)
	}))
	t.Cleanup(rec.Close)
	return rec
}

// Bodies returns a copy of the request bodies received so far.
func (rec *WebhookRecorder) Bodies() [][]byte {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	out := make([][]byte, len(rec.bodies))
	copy(out, rec.bodies)
	return out
}
