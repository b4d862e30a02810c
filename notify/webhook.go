// Package notify delivers go-live announcements to a Discord-compatible chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/onnwee/live-notifier/config"
	"github.com/onnwee/live-notifier/live"
)

// Embed is the rich card attached to the message.
type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// AllowedMentions controls which mentions in content actually ping.
type AllowedMentions struct {
	Parse []string `json:"parse"`
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Content         string          `json:"content"`
	Embeds          []Embed         `json:"embeds"`
	AllowedMentions AllowedMentions `json:"allowed_mentions"`
}

// Webhook posts announcements to a single webhook URL.
type Webhook struct {
	url         string
	displayName string
	content     string
	client      *http.Client
	limiter     *rate.Limiter
}

// NewWebhook builds a notifier from cfg. hc may be nil.
func NewWebhook(cfg *config.Config, hc *http.Client) *Webhook {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	content := cfg.NotifyContent
	if content == "" {
		content = config.DefaultNotifyContent
	}
	name := cfg.DisplayName
	if name == "" {
		name = cfg.ChannelID
	}
	return &Webhook{
		url:         cfg.WebhookURL,
		displayName: name,
		content:     content,
		client:      hc,
		// Discord allows 5 requests per 2s per webhook.
		limiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 5),
	}
}

// BuildPayload formats the announcement for b.
func (w *Webhook) BuildPayload(b live.Broadcast) Payload {
	return Payload{
		Content: w.content,
		Embeds: []Embed{{
			Title:       fmt.Sprintf("🔴 %s is LIVE!", w.displayName),
			Description: b.Title,
			URL:         b.URL,
		}},
		AllowedMentions: AllowedMentions{Parse: []string{"everyone"}},
	}
}

// Notify posts the announcement once. A 200 or 204 is success; any other status
// is logged and returned as *live.StatusError. There are no retries.
func (w *Webhook) Notify(ctx context.Context, b live.Broadcast) error {
	body, err := json.Marshal(w.BuildPayload(b))
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("webhook rate limiter: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		respBody := live.Truncate(string(b), 512)
		slog.Warn("webhook delivery failed",
			slog.Int("status", resp.StatusCode),
			slog.String("body", respBody),
			slog.String("component", "notify"))
		return &live.StatusError{Op: "webhook", Status: resp.StatusCode, Body: respBody}
	}
	return nil
}
