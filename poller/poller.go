// Package poller runs the live-detection loop: check the channel, announce a
// broadcast the first time its id is seen, persist that id, then sleep with
// exponential backoff after faults.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/live-notifier/live"
	"github.com/onnwee/live-notifier/state"
	"github.com/onnwee/live-notifier/telemetry"
)

// StateStore loads and persists the de-duplication record.
type StateStore interface {
	Load() state.State
	Save(state.State) error
}

// Status is a point-in-time view of the poller for the status endpoint.
type Status struct {
	LastCheck      time.Time     `json:"last_check,omitempty"`
	LastError      string        `json:"last_error,omitempty"`
	LastNotifiedID string        `json:"last_notified_id,omitempty"`
	Live           bool          `json:"live"`
	CurrentID      string        `json:"current_id,omitempty"`
	Interval       time.Duration `json:"-"`
	IntervalSecs   float64       `json:"interval_seconds"`
	Cycles         int64         `json:"cycles"`
	Faults         int           `json:"consecutive_faults"`
}

// Poller owns the loop state; only Status is safe to call from other goroutines.
type Poller struct {
	checker  live.Checker
	notifier live.Notifier
	store    StateStore
	backoff  *Backoff

	// sleep waits d or until ctx is done; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error

	loadOnce sync.Once
	st       state.State

	mu     sync.RWMutex
	status Status
}

// New wires a poller. base is the normal interval and max caps the backoff.
func New(checker live.Checker, notifier live.Notifier, store StateStore, base, max time.Duration) *Poller {
	telemetry.Init()
	p := &Poller{
		checker:  checker,
		notifier: notifier,
		store:    store,
		backoff:  NewBackoff(base, max),
		sleep:    sleepCtx,
	}
	p.status.Interval = p.backoff.Current()
	p.status.IntervalSecs = p.backoff.Current().Seconds()
	return p
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run loads state once and polls until ctx is canceled. It returns nil on
// cancellation; no error ends the loop early.
func (p *Poller) Run(ctx context.Context) error {
	p.ensureLoaded()
	slog.Info("starting polling loop",
		slog.Duration("base_interval", p.backoff.base),
		slog.Duration("max_backoff", p.backoff.max),
		slog.String("last_notified_id", p.st.LastNotifiedID),
		slog.String("component", "poller"))
	for {
		if ctx.Err() != nil {
			slog.Info("polling loop stopped", slog.String("component", "poller"))
			return nil
		}
		interval := p.Cycle(ctx)
		if ctx.Err() != nil {
			slog.Info("polling loop stopped", slog.String("component", "poller"))
			return nil
		}
		slog.Info("sleeping before next check", slog.Duration("interval", interval), slog.String("component", "poller"))
		if err := p.sleep(ctx, interval); err != nil {
			slog.Info("polling loop stopped", slog.String("component", "poller"))
			return nil
		}
	}
}

func (p *Poller) ensureLoaded() {
	p.loadOnce.Do(func() {
		p.st = p.store.Load()
		p.mu.Lock()
		p.status.LastNotifiedID = p.st.LastNotifiedID
		p.mu.Unlock()
	})
}

// Cycle performs one check and returns the interval to sleep before the next.
// The interval resets to base after a clean cycle and doubles after a fault.
// A cycle interrupted by ctx cancellation leaves the backoff untouched.
func (p *Poller) Cycle(ctx context.Context) time.Duration {
	p.ensureLoaded()
	telemetry.Inc(telemetry.PollCycles)

	ctx, span := telemetry.StartSpan(ctx, "poller", "poll.cycle")
	defer span.End()

	b, err := p.attempt(ctx)
	if ctx.Err() != nil {
		return p.backoff.Current()
	}

	var interval time.Duration
	if err != nil {
		telemetry.Inc(telemetry.PollFaults)
		telemetry.RecordError(span, err)
		interval = p.backoff.Fail()
		slog.Error("poll cycle failed",
			slog.Any("err", err),
			slog.Duration("next_interval", interval),
			slog.String("component", "poller"))
	} else {
		span.SetAttributes(telemetry.LiveAttr(b != nil))
		telemetry.SetSpanSuccess(span)
		telemetry.SetLive(b != nil)
		interval = p.backoff.Reset()
	}
	telemetry.SetPollInterval(interval)
	p.record(b, err, interval)
	return interval
}

// attempt runs steps that may fault. Panics are converted to errors so a bad
// response shape cannot take the process down.
func (p *Poller) attempt(ctx context.Context) (b *live.Broadcast, err error) {
	defer func() {
		if r := recover(); r != nil {
			b = nil
			err = fmt.Errorf("panic in poll cycle: %v", r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	telemetry.TimeFunc(telemetry.CheckDuration, func() {
		b, err = p.checker.CheckLive(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("check live: %w", err)
	}
	if b == nil {
		slog.Debug("no live stream currently", slog.String("component", "poller"))
		return nil, nil
	}
	if b.ID == p.st.LastNotifiedID {
		slog.Debug("already notified", slog.String("broadcast_id", b.ID), slog.String("component", "poller"))
		return b, nil
	}
	if err := ctx.Err(); err != nil {
		return b, err
	}
	return b, p.announce(ctx, *b)
}

func (p *Poller) announce(ctx context.Context, b live.Broadcast) error {
	slog.Info("new live stream found, notifying",
		slog.String("broadcast_id", b.ID),
		slog.String("title", b.Title),
		slog.String("component", "poller"))

	_, span := telemetry.StartSpan(ctx, "poller", "poll.notify", telemetry.BroadcastAttr(b.ID))
	defer span.End()

	var err error
	telemetry.TimeFunc(telemetry.NotifyDuration, func() {
		err = p.notifier.Notify(ctx, b)
	})
	var se *live.StatusError
	switch {
	case err == nil:
		telemetry.Inc(telemetry.NotificationsSent)
	case errors.As(err, &se):
		// The webhook answered; a rejection is logged and not retried.
		telemetry.Inc(telemetry.NotificationsRejected)
		telemetry.RecordError(span, err)
		slog.Warn("notification rejected; not retrying",
			slog.String("broadcast_id", b.ID),
			slog.Int("status", se.Status),
			slog.String("component", "poller"))
	default:
		telemetry.RecordError(span, err)
		return fmt.Errorf("notify: %w", err)
	}

	p.st.LastNotifiedID = b.ID
	if err := p.store.Save(p.st); err != nil {
		telemetry.Inc(telemetry.StateSaveFailures)
		slog.Warn("continuing with in-memory state", slog.String("broadcast_id", b.ID), slog.String("component", "poller"))
	}
	return nil
}

func (p *Poller) record(b *live.Broadcast, err error, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.LastCheck = time.Now().UTC()
	p.status.Cycles++
	p.status.Interval = interval
	p.status.IntervalSecs = interval.Seconds()
	p.status.LastNotifiedID = p.st.LastNotifiedID
	if err != nil {
		p.status.LastError = err.Error()
		p.status.Faults++
		return
	}
	p.status.LastError = ""
	p.status.Faults = 0
	p.status.Live = b != nil
	p.status.CurrentID = ""
	if b != nil {
		p.status.CurrentID = b.ID
	}
}

// LastNotifiedID returns the in-memory de-duplication id.
func (p *Poller) LastNotifiedID() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status.LastNotifiedID
}

// Status returns a copy of the current status snapshot.
func (p *Poller) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}
