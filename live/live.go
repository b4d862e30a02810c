// Package live holds the types shared between live-status checkers, notifiers
// and the poller: the Broadcast value and the contracts each side implements.
package live

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"
)

// Broadcast is a single live session reported by a streaming platform.
type Broadcast struct {
	ID        string
	Title     string
	URL       string
	Channel   string
	StartedAt time.Time
}

// Checker reports the channel's current live broadcast, if any.
// A nil broadcast with a nil error means the channel is not live.
type Checker interface {
	CheckLive(ctx context.Context) (*Broadcast, error)
}

// Notifier announces a broadcast to subscribers.
type Notifier interface {
	Notify(ctx context.Context, b Broadcast) error
}

// StatusError is returned when a remote endpoint answered with an unexpected
// HTTP status. The request reached the remote side, so callers can tell it
// apart from transport failures.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Truncate shortens s to at most n bytes for logging remote bodies. The cut
// never splits a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
