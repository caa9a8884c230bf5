package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultFeedURL         = "https://eftarkov.com/news/data.json"
	DefaultFeedReferer     = "https://eftarkov.com/news/web_206.html"
	DefaultFeedUserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultFeedTimeout     = 10 * time.Second
	DefaultFeedRateLimit   = 1.0
	DefaultFeedBurst       = 3
	DefaultRefreshInterval = 5 * time.Second
	DefaultRefreshCooldown = 60 * time.Second
	DefaultAliasPath       = "maps.txt"
	DefaultHTTPAddr        = ":8080"
	DefaultLogLevel        = "info"
)

// Config is the top-level configuration of goonsradar.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	Feed    FeedConfig    `yaml:"feed"`
	Refresh RefreshConfig `yaml:"refresh"`
	Aliases AliasConfig   `yaml:"aliases"`
	HTTP    HTTPConfig    `yaml:"http"`
	Notify  NotifyConfig  `yaml:"notify"`
}

// FeedConfig describes the upstream JSON endpoint.
type FeedConfig struct {
	// URL is the upstream data.json endpoint. A cache-busting "_" query
	// parameter is appended on every request.
	URL string `yaml:"url"`

	// Referer and UserAgent are sent on every request; the upstream blocks
	// requests without them.
	Referer   string `yaml:"referer"`
	UserAgent string `yaml:"user_agent"`

	// Timeout bounds a single request end to end.
	Timeout time.Duration `yaml:"timeout"`

	// RateLimit caps outgoing requests per second (0 disables the limiter).
	// Burst is the number of requests allowed back to back.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// RefreshConfig controls the background polling loop.
type RefreshConfig struct {
	// Interval is the steady-state delay between two fetches.
	Interval time.Duration `yaml:"interval"`

	// Cooldown replaces Interval once after a failed fetch.
	Cooldown time.Duration `yaml:"cooldown"`
}

// AliasConfig locates the map alias file.
type AliasConfig struct {
	// Path is the line-oriented alias file ("display | alias1, alias2").
	// A missing file falls back to the built-in table.
	Path string `yaml:"path"`

	// Watch re-loads the alias file whenever it changes on disk.
	Watch bool `yaml:"watch"`
}

// HTTPConfig configures the query API listener.
type HTTPConfig struct {
	// Addr is the listen address of the REST API, /metrics and /ws/stream.
	Addr string `yaml:"addr"`

	// WebSocket enables the /ws/stream push endpoint.
	WebSocket bool `yaml:"websocket"`
}

// NotifyConfig holds webhook targets for position-change notifications.
type NotifyConfig struct {
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable holding the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but returns the default configuration when
// path is empty or the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Warn("config: file not found, using defaults", "path", path)
		return Default(), nil
	}
	return cfg, err
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaults()
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Feed: FeedConfig{
			URL:       DefaultFeedURL,
			Referer:   DefaultFeedReferer,
			UserAgent: DefaultFeedUserAgent,
			Timeout:   DefaultFeedTimeout,
			RateLimit: DefaultFeedRateLimit,
			Burst:     DefaultFeedBurst,
		},
		Refresh: RefreshConfig{
			Interval: DefaultRefreshInterval,
			Cooldown: DefaultRefreshCooldown,
		},
		Aliases: AliasConfig{
			Path: DefaultAliasPath,
		},
		HTTP: HTTPConfig{
			Addr:      DefaultHTTPAddr,
			WebSocket: true,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	u, err := url.Parse(cfg.Feed.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("feed.url %q must be an absolute http(s) URL", cfg.Feed.URL)
	}
	if cfg.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive")
	}
	if cfg.Feed.RateLimit < 0 {
		return fmt.Errorf("feed.rate_limit must not be negative")
	}
	if cfg.Feed.RateLimit > 0 && cfg.Feed.Burst <= 0 {
		return fmt.Errorf("feed.burst must be positive when rate_limit is set")
	}
	if cfg.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive")
	}
	if cfg.Refresh.Cooldown < cfg.Refresh.Interval {
		return fmt.Errorf("refresh.cooldown %v must not be shorter than refresh.interval %v",
			cfg.Refresh.Cooldown, cfg.Refresh.Interval)
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	for i, wh := range cfg.Notify.Webhooks {
		switch wh.Type {
		case "slack", "http":
		default:
			return fmt.Errorf("notify.webhooks[%d]: unknown type %q", i, wh.Type)
		}
		if wh.URLEnv == "" {
			return fmt.Errorf("notify.webhooks[%d]: url_env is required", i)
		}
	}
	return nil
}

// ParseLevel converts a log_level string into a slog.Level.
// The empty string maps to info.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q unknown: want debug|info|warn|error", s)
	}
	return lvl, nil
}
