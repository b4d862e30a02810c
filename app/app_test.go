package app

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/onnwee/live-notifier/config"
	"github.com/onnwee/live-notifier/notify"
	"github.com/onnwee/live-notifier/testutil"
	"github.com/onnwee/live-notifier/twitchapi"
	"github.com/onnwee/live-notifier/youtubeapi"
)

func testConfig(t *testing.T, ytURL, webhookURL string) *config.Config {
	t.Helper()
	return &config.Config{
		Platform:       config.PlatformYouTube,
		APIKey:         "key",
		ChannelID:      "UC123",
		WebhookURL:     webhookURL,
		DisplayName:    "Test",
		NotifyContent:  config.DefaultNotifyContent,
		PollInterval:   time.Hour,
		MaxBackoff:     time.Hour,
		RequestTimeout: time.Second,
		StateFile:      filepath.Join(t.TempDir(), "state.json"),
		Port:           0,
		YouTubeAPIBase: ytURL,
	}
}

func TestNewChecker(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1", "http://127.0.0.1")
	c, err := NewChecker(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}
	if _, ok := c.(*youtubeapi.Checker); !ok {
		t.Errorf("youtube platform built %T", c)
	}

	cfg.Platform = config.PlatformTwitch
	c, err = NewChecker(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewChecker() error = %v", err)
	}
	if _, ok := c.(*twitchapi.Checker); !ok {
		t.Errorf("twitch platform built %T", c)
	}

	cfg.Platform = "vimeo"
	if _, err := NewChecker(context.Background(), cfg); err == nil {
		t.Error("NewChecker() accepted unknown platform")
	}
}

func runUntilFirstCycle(t *testing.T, a *App) {
	t.Helper()
	a.Addr = "127.0.0.1:0"
	a.ShutdownTimeout = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for a.Poller.Status().Cycles == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func readStateID(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	var st map[string]any
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatalf("state file %s: %v", b, err)
	}
	id, _ := st["last_notified_video_id"].(string)
	return id
}

func TestRunNotifiesAndStopsTogether(t *testing.T) {
	api := testutil.NewMockAPIServer(t)
	api.MockYouTubeLive("abc123", "Big Game")
	hook := testutil.NewWebhookRecorder(t, http.StatusNoContent)

	cfg := testConfig(t, api.URL, hook.URL)
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runUntilFirstCycle(t, a)

	bodies := hook.Bodies()
	if len(bodies) != 1 {
		t.Fatalf("webhook hits = %d, want 1", len(bodies))
	}
	var p notify.Payload
	if err := json.Unmarshal(bodies[0], &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.Embeds[0].Description != "Big Game" || p.Embeds[0].URL != "https://youtu.be/abc123" {
		t.Errorf("payload = %+v", p)
	}
	if id := readStateID(t, cfg.StateFile); id != "abc123" {
		t.Errorf("persisted id = %q, want abc123", id)
	}

	// second process over the same state file stays quiet
	b, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runUntilFirstCycle(t, b)
	if got := len(hook.Bodies()); got != 1 {
		t.Errorf("webhook hits after restart = %d, want 1", got)
	}
}

func TestRunTwitch(t *testing.T) {
	api := testutil.NewMockAPIServer(t)
	api.MockOAuthTokenResponse("app-token", 3600)
	api.MockStreamsResponse([]map[string]interface{}{{
		"id":         "s-99",
		"user_login": "goatyagg",
		"type":       "live",
		"title":      "Ranked grind",
		"started_at": "2024-10-15T14:30:00Z",
	}})
	hook := testutil.NewWebhookRecorder(t, http.StatusOK)

	cfg := testConfig(t, "", hook.URL)
	cfg.Platform = config.PlatformTwitch
	cfg.ChannelID = "goatyagg"
	cfg.TwitchClientID = "cid"
	cfg.TwitchClientSecret = "secret"
	cfg.TwitchAPIBase = api.URL
	cfg.TwitchTokenURL = api.URL + "/oauth2/token"

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runUntilFirstCycle(t, a)

	if got := len(hook.Bodies()); got != 1 {
		t.Fatalf("webhook hits = %d, want 1", got)
	}
	if id := readStateID(t, cfg.StateFile); id != "s-99" {
		t.Errorf("persisted id = %q, want s-99", id)
	}
}

func TestRunServerFailureStopsPoller(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	api := testutil.NewMockAPIServer(t)
	api.MockYouTubeLive("", "")

	a, err := New(context.Background(), testConfig(t, api.URL, "http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	a.Addr = busy.Addr().String()

	select {
	case err := <-runAsync(a):
		if err == nil {
			t.Fatal("Run() error = nil, want listen error")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run() did not return after server failure")
	}
}

func runAsync(a *App) <-chan error {
	done := make(chan error, 1)
	go func() { done <- a.Run(context.Background()) }()
	return done
}

func TestQuotaExceededKeepsBaseInterval(t *testing.T) {
	api := testutil.NewMockAPIServer(t)
	api.Handle("/youtube/v3/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"quotaExceeded"}}`))
	})
	hook := testutil.NewWebhookRecorder(t, http.StatusNoContent)

	cfg := testConfig(t, api.URL, hook.URL)
	cfg.PollInterval = 15 * time.Minute
	cfg.MaxBackoff = time.Hour
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := a.Poller.Cycle(context.Background()); got != 15*time.Minute {
		t.Errorf("interval = %v, want 15m0s", got)
	}
	if st := a.Poller.Status(); st.Faults != 0 || st.Live {
		t.Errorf("status = %+v", st)
	}
	if got := len(hook.Bodies()); got != 0 {
		t.Errorf("webhook hits = %d, want 0", got)
	}
}
