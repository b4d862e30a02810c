// Package app wires configuration into the poller and HTTP server and
// supervises both: they start together and stop together, with a bounded wait
// on shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onnwee/live-notifier/config"
	"github.com/onnwee/live-notifier/live"
	"github.com/onnwee/live-notifier/notify"
	"github.com/onnwee/live-notifier/poller"
	"github.com/onnwee/live-notifier/server"
	"github.com/onnwee/live-notifier/state"
	"github.com/onnwee/live-notifier/twitchapi"
	"github.com/onnwee/live-notifier/youtubeapi"
)

// DefaultShutdownTimeout bounds how long Run waits for both tasks after cancellation.
const DefaultShutdownTimeout = 10 * time.Second

// ErrShutdownTimeout is returned when the tasks outlive the shutdown bound.
var ErrShutdownTimeout = errors.New("shutdown timed out")

// App is the assembled service.
type App struct {
	Poller          *poller.Poller
	Handler         http.Handler
	Addr            string
	ShutdownTimeout time.Duration
}

// New builds the service described by cfg. ctx scopes long-lived clients such
// as the Twitch token source.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	checker, err := NewChecker(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p := poller.New(checker, notify.NewWebhook(cfg, nil), state.NewStore(cfg.StateFile), cfg.PollInterval, cfg.MaxBackoff)
	return &App{
		Poller:          p,
		Handler:         server.NewMux(p),
		Addr:            cfg.Addr(),
		ShutdownTimeout: DefaultShutdownTimeout,
	}, nil
}

// NewChecker returns the live-status checker for cfg.Platform.
func NewChecker(ctx context.Context, cfg *config.Config) (live.Checker, error) {
	switch cfg.Platform {
	case config.PlatformTwitch:
		return twitchapi.NewChecker(ctx, cfg, nil), nil
	case config.PlatformYouTube, "":
		return youtubeapi.New(ctx, cfg, nil)
	default:
		return nil, fmt.Errorf("unsupported platform %q", cfg.Platform)
	}
}

// Run starts the poller and the HTTP server and blocks until ctx is canceled
// or either task fails. After that it waits at most ShutdownTimeout for both.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.Poller.Run(gctx)
	})
	g.Go(func() error {
		return server.Start(gctx, a.Addr, a.Handler)
	})

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	timeout := a.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		slog.Error("tasks did not stop in time", slog.Duration("timeout", timeout), slog.String("component", "app"))
		return ErrShutdownTimeout
	}
}
