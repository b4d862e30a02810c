// Command live-notifier watches a streaming channel and posts a one-time
// announcement to a chat webhook whenever a new live broadcast starts.
// It:
//   - Loads configuration from the environment (and a local .env when present).
//   - Polls YouTube (or Twitch) on a fixed interval with exponential backoff on faults.
//   - Remembers the last announced broadcast in a JSON state file across restarts.
//   - Exposes / for hosting-platform liveness checks, plus /healthz, /status and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/live-notifier/app"
	"github.com/onnwee/live-notifier/config"
	"github.com/onnwee/live-notifier/telemetry"
)

const (
	serviceName    = "live-notifier"
	serviceVersion = "1.0.0"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	setupLogger()

	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissing) {
			slog.Error("missing configuration", slog.Any("err", err))
		} else {
			slog.Error("config load failed", slog.Any("err", err))
		}
		os.Exit(1)
	}

	telemetry.Init()

	// Tracing is optional; requires OTEL_EXPORTER_OTLP_ENDPOINT
	initCtx, initCancel := context.WithTimeout(context.Background(), 5*time.Second)
	shutdownTracing, err := telemetry.InitTracing(initCtx, serviceName, serviceVersion, telemetry.TracingConfigFromEnv())
	initCancel()
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", slog.Any("err", err))
		}
	}
	defer shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		slog.Error("startup failed", slog.Any("err", err))
		os.Exit(1)
	}

	slog.Info("starting",
		slog.String("platform", cfg.Platform),
		slog.String("channel", cfg.ChannelID),
		slog.String("addr", a.Addr),
		slog.String("state_file", cfg.StateFile))

	if err := a.Run(ctx); err != nil {
		slog.Error("exited with error", slog.Any("err", err))
		stop()
		shutdown()
		os.Exit(1)
	}
	slog.Info("shut down")
}

// setupLogger configures the default slog logger from LOG_LEVEL and LOG_FORMAT.
// Defaults: level=info, format=text.
func setupLogger() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		format = "text"
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", format))
}
