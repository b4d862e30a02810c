// Package twitchapi contains minimal helpers to query Twitch Helix for a
// channel's live stream, using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/onnwee/live-notifier/config"
	"github.com/onnwee/live-notifier/live"
)

// DefaultAPIBase is the Helix API root.
const DefaultAPIBase = "https://api.twitch.tv"

// HelixClient provides the minimal Helix calls needed for live detection.
type HelixClient struct {
	ClientID    string
	BaseURL     string
	TokenSource oauth2.TokenSource
	HTTPClient  *http.Client
}

// Stream is a live stream as reported by /helix/streams.
type Stream struct {
	ID        string    `json:"id"`
	UserLogin string    `json:"user_login"`
	UserName  string    `json:"user_name"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	StartedAt time.Time `json:"started_at"`
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) baseURL() string {
	if hc.BaseURL != "" {
		return strings.TrimSuffix(hc.BaseURL, "/")
	}
	return DefaultAPIBase
}

// GetStreams returns the live streams for a login (zero or one entry).
func (hc *HelixClient) GetStreams(ctx context.Context, login string) ([]Stream, error) {
	if login == "" {
		return nil, errors.New("login empty")
	}
	if hc.TokenSource == nil {
		return nil, errors.New("missing twitch token source")
	}
	tok, err := hc.TokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("twitch app token: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.baseURL()+"/helix/streams", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("user_login", login)
	q.Set("type", "live")
	q.Set("first", "1")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	tok.SetAuthHeader(req)

	resp, err := hc.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		body := live.Truncate(string(b), 512)
		slog.Error("twitch api error", slog.Int("status", resp.StatusCode), slog.String("body", body), slog.String("component", "twitch"))
		return nil, &live.StatusError{Op: "twitch streams", Status: resp.StatusCode, Body: body}
	}
	var body struct {
		Data []Stream `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode streams: %w", err)
	}
	return body.Data, nil
}

// Checker reports whether a Twitch channel is live.
type Checker struct {
	helix   *HelixClient
	login   string
	timeout time.Duration
}

// NewChecker builds a checker for cfg.ChannelID (a Twitch login). hc may be nil.
func NewChecker(ctx context.Context, cfg *config.Config, hc *http.Client) *Checker {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = config.DefaultRequestTimeout
	}
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Checker{
		helix: &HelixClient{
			ClientID:    cfg.TwitchClientID,
			BaseURL:     cfg.TwitchAPIBase,
			TokenSource: NewTokenSource(ctx, cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchTokenURL, hc),
			HTTPClient:  hc,
		},
		login:   strings.ToLower(cfg.ChannelID),
		timeout: timeout,
	}
}

// CheckLive returns the current live stream, or nil, nil when offline. A
// rejected Helix request has already been logged by GetStreams and counts as
// offline.
func (c *Checker) CheckLive(ctx context.Context) (*live.Broadcast, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	streams, err := c.helix.GetStreams(ctx, c.login)
	if err != nil {
		var se *live.StatusError
		if errors.As(err, &se) {
			return nil, nil
		}
		return nil, err
	}
	for _, s := range streams {
		// Helix documents "live" and an empty type on errors; skip anything else
		if s.Type != "" && s.Type != "live" {
			continue
		}
		if s.ID == "" {
			return nil, errors.New("twitch streams: result without stream id")
		}
		login := s.UserLogin
		if login == "" {
			login = c.login
		}
		return &live.Broadcast{
			ID:        s.ID,
			Title:     s.Title,
			URL:       "https://www.twitch.tv/" + login,
			Channel:   login,
			StartedAt: s.StartedAt.UTC(),
		}, nil
	}
	return nil, nil
}
