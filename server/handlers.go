package server

import (
	"github.com/onnwee/live-notifier/poller"
)

// StatusProvider exposes the poller snapshot served by /status.
type StatusProvider interface {
	Status() poller.Status
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	status StatusProvider
}

// NewHandlers creates a Handlers instance. status may be nil, in which case
// /status reports that no poller is attached.
func NewHandlers(status StatusProvider) *Handlers {
	return &Handlers{status: status}
}
