package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// RootMessage is the fixed body served on GET /.
const RootMessage = "✅ Live notifier is running."

// HandleRoot answers the hosting platform's liveness probe.
func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(RootMessage))
}

// HandleHealthz is the probe used by cmd/healthcheck.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleStatus reports the poller's last cycle as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.status == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "no poller attached"})
		return
	}
	if err := json.NewEncoder(w).Encode(h.status.Status()); err != nil {
		slog.Warn("encode status", slog.Any("err", err), slog.String("component", "http"))
	}
}
