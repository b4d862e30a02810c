// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PollCycles            prometheus.Counter
	PollFaults            prometheus.Counter
	NotificationsSent     prometheus.Counter
	NotificationsRejected prometheus.Counter
	StateSaveFailures     prometheus.Counter

	// Histograms (seconds)
	CheckDuration  prometheus.Observer
	NotifyDuration prometheus.Observer

	// Gauges
	PollIntervalGauge prometheus.Gauge
	LiveGauge         prometheus.Gauge // 1=live,0=offline
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "live_notifier_poll_cycles_total", Help: "Number of poll cycles run"})
		PollFaults = promauto.NewCounter(prometheus.CounterOpts{Name: "live_notifier_poll_faults_total", Help: "Number of poll cycles that ended in a fault"})
		NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{Name: "live_notifier_notifications_sent_total", Help: "Number of go-live notifications accepted by the webhook"})
		NotificationsRejected = promauto.NewCounter(prometheus.CounterOpts{Name: "live_notifier_notifications_rejected_total", Help: "Number of go-live notifications rejected by the webhook"})
		StateSaveFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "live_notifier_state_save_failures_total", Help: "Number of failed state file writes"})
		CheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "live_notifier_check_duration_seconds", Help: "Live status check duration seconds", Buckets: prometheus.DefBuckets})
		NotifyDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "live_notifier_notify_duration_seconds", Help: "Webhook delivery duration seconds", Buckets: prometheus.DefBuckets})
		PollIntervalGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "live_notifier_poll_interval_seconds", Help: "Current sleep interval between poll cycles"})
		LiveGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "live_notifier_channel_live", Help: "Channel live=1 offline=0 as of the last successful check"})
	})
}

// SetLive sets gauge to 1 if live else 0.
func SetLive(live bool) {
	if LiveGauge == nil {
		return
	}
	if live {
		LiveGauge.Set(1)
	} else {
		LiveGauge.Set(0)
	}
}

// SetPollInterval records the interval the poller is about to sleep for.
func SetPollInterval(d time.Duration) {
	if PollIntervalGauge != nil {
		PollIntervalGauge.Set(d.Seconds())
	}
}

// Inc increments c if it has been registered.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
