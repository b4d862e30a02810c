// Package youtubeapi wraps the YouTube Data API search endpoint for the single
// purpose of finding a channel's current live broadcast. Requests are made with
// a static API key; no OAuth flow is involved.
package youtubeapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/onnwee/live-notifier/config"
	"github.com/onnwee/live-notifier/live"
)

const watchBase = "https://youtu.be/"

// Checker reports whether a YouTube channel is live.
type Checker struct {
	channelID string
	apiKey    string
	timeout   time.Duration
	svc       *yt.Service
}

// New builds a checker for cfg.ChannelID. hc may be nil; a client with
// cfg.RequestTimeout is used then.
func New(ctx context.Context, cfg *config.Config, hc *http.Client) (*Checker, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if cfg.YouTubeAPIBase != "" {
		opts = append(opts, option.WithEndpoint(cfg.YouTubeAPIBase))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	if cfg.YouTubeAPIBase != "" {
		svc.BasePath = strings.TrimSuffix(cfg.YouTubeAPIBase, "/") + "/"
	}
	return &Checker{channelID: cfg.ChannelID, apiKey: cfg.APIKey, timeout: timeout, svc: svc}, nil
}

// CheckLive searches the channel for a live video. It returns nil, nil when
// nothing is live. A non-success API response (quota, bad key) is logged and
// also reported as not live; transport errors and malformed bodies are errors.
func (c *Checker) CheckLive(ctx context.Context) (*live.Broadcast, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	call := c.svc.Search.List([]string{"snippet"}).
		ChannelId(c.channelID).
		Type("video").
		EventType("live").
		MaxResults(1).
		Context(ctx)
	// WithHTTPClient bypasses option.WithAPIKey, so the key goes on the query.
	res, err := call.Do(googleapi.QueryParameter("key", c.apiKey))
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			slog.Error("youtube api error",
				slog.Int("status", gerr.Code),
				slog.String("body", live.Truncate(gerr.Body, 512)),
				slog.String("component", "youtube"))
			return nil, nil
		}
		return nil, fmt.Errorf("youtube search: %w", err)
	}
	if len(res.Items) == 0 {
		return nil, nil
	}
	item := res.Items[0]
	if item.Id == nil || item.Id.VideoId == "" {
		return nil, errors.New("youtube search: result without video id")
	}
	b := &live.Broadcast{
		ID:      item.Id.VideoId,
		URL:     watchBase + item.Id.VideoId,
		Channel: c.channelID,
	}
	if item.Snippet != nil {
		b.Title = item.Snippet.Title
	}
	return b, nil
}
