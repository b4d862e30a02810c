// Package config loads environment variables and provides a typed Config used across the service.
// Defaults let the binary run with only the required credentials set; Load fails fast when a
// required value is missing or still holds a placeholder.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Supported live-status sources.
const (
	PlatformYouTube = "youtube"
	PlatformTwitch  = "twitch"
)

// Defaults.
const (
	DefaultPort           = 8000
	DefaultPollInterval   = 900 * time.Second
	DefaultMaxBackoff     = 3600 * time.Second
	DefaultRequestTimeout = 10 * time.Second
	DefaultStateFile      = "last_notified.json"
	DefaultNotifyContent  = "@everyone Join the stream now!"
)

// ErrMissing is wrapped by Load when required variables are absent or placeholders.
var ErrMissing = errors.New("missing configuration")

// placeholders are values shipped in sample env files; treat them as unset.
var placeholders = map[string]bool{
	"YOUR_API_KEY":              true,
	"YOUR_YOUTUBE_API_KEY":      true,
	"YOUR_CHANNEL_ID":           true,
	"YOUR_WEBHOOK_URL":          true,
	"YOUR_DISCORD_WEBHOOK_URL":  true,
	"YOUR_TWITCH_CLIENT_ID":     true,
	"YOUR_TWITCH_CLIENT_SECRET": true,
}

type Config struct {
	Platform string

	// Source
	APIKey    string
	ChannelID string

	// Twitch app credentials (PLATFORM=twitch)
	TwitchClientID     string
	TwitchClientSecret string

	// Notification
	WebhookURL    string
	DisplayName   string
	NotifyContent string

	// Polling
	PollInterval   time.Duration
	MaxBackoff     time.Duration
	RequestTimeout time.Duration
	StateFile      string

	// HTTP
	Port int

	// Endpoint overrides, empty means the platform default.
	YouTubeAPIBase string
	TwitchAPIBase  string
	TwitchTokenURL string
}

// Load reads environment variables and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Platform = strings.ToLower(strings.TrimSpace(os.Getenv("PLATFORM")))
	if cfg.Platform == "" {
		cfg.Platform = PlatformYouTube
	}
	if cfg.Platform != PlatformYouTube && cfg.Platform != PlatformTwitch {
		return nil, fmt.Errorf("invalid PLATFORM %q (want %s or %s)", cfg.Platform, PlatformYouTube, PlatformTwitch)
	}

	cfg.APIKey = firstEnv("API_KEY", "YOUTUBE_API_KEY")
	cfg.ChannelID = firstEnv("CHANNEL_ID")
	cfg.WebhookURL = firstEnv("WEBHOOK_URL", "DISCORD_WEBHOOK_URL")
	cfg.TwitchClientID = firstEnv("TWITCH_CLIENT_ID")
	cfg.TwitchClientSecret = firstEnv("TWITCH_CLIENT_SECRET")

	cfg.DisplayName = os.Getenv("DISPLAY_NAME")
	if cfg.DisplayName == "" {
		cfg.DisplayName = cfg.ChannelID
	}
	cfg.NotifyContent = os.Getenv("NOTIFY_CONTENT")
	if cfg.NotifyContent == "" {
		cfg.NotifyContent = DefaultNotifyContent
	}

	cfg.StateFile = os.Getenv("STATE_FILE")
	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFile
	}

	var err error
	if cfg.PollInterval, err = durationEnv("POLL_INTERVAL", DefaultPollInterval); err != nil {
		return nil, err
	}
	if cfg.MaxBackoff, err = durationEnv("MAX_BACKOFF", DefaultMaxBackoff); err != nil {
		return nil, err
	}
	if cfg.MaxBackoff < cfg.PollInterval {
		return nil, fmt.Errorf("MAX_BACKOFF (%s) must be >= POLL_INTERVAL (%s)", cfg.MaxBackoff, cfg.PollInterval)
	}
	if cfg.RequestTimeout, err = durationEnv("REQUEST_TIMEOUT", DefaultRequestTimeout); err != nil {
		return nil, err
	}

	cfg.Port = DefaultPort
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p < 0 || p > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = p
	}

	cfg.YouTubeAPIBase = os.Getenv("YOUTUBE_API_BASE")
	cfg.TwitchAPIBase = os.Getenv("TWITCH_API_BASE")
	cfg.TwitchTokenURL = os.Getenv("TWITCH_TOKEN_URL")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that every variable required by the selected platform is set.
func (c *Config) Validate() error {
	var missing []string
	if c.ChannelID == "" {
		missing = append(missing, "CHANNEL_ID")
	}
	if c.WebhookURL == "" {
		missing = append(missing, "WEBHOOK_URL")
	}
	switch c.Platform {
	case PlatformTwitch:
		if c.TwitchClientID == "" {
			missing = append(missing, "TWITCH_CLIENT_ID")
		}
		if c.TwitchClientSecret == "" {
			missing = append(missing, "TWITCH_CLIENT_SECRET")
		}
	default:
		if c.APIKey == "" {
			missing = append(missing, "API_KEY")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: please set %s", ErrMissing, strings.Join(missing, ", "))
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// firstEnv returns the first non-empty, non-placeholder value among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" || placeholders[v] {
			continue
		}
		return v
	}
	return ""
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// bare integers are seconds
		n, nerr := strconv.Atoi(v)
		if nerr != nil {
			return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
		}
		d = time.Duration(n) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}
