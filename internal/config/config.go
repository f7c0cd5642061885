package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Check    CheckConfig    `yaml:"check"`
	Sources  SourcesConfig  `yaml:"sources"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
	Alerts   AlertsConfig   `yaml:"alerts"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// CheckConfig configures a single idea check.
type CheckConfig struct {
	Depth         string `yaml:"depth"`
	Threshold     int    `yaml:"threshold"`
	RunTimeout    string `yaml:"run_timeout"`
	SourceTimeout string `yaml:"source_timeout"`
}

// ParseRunTimeout returns the outer deadline for a whole check.
func (c CheckConfig) ParseRunTimeout() time.Duration {
	d, err := time.ParseDuration(c.RunTimeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// ParseSourceTimeout returns the per-adapter timeout.
func (c CheckConfig) ParseSourceTimeout() time.Duration {
	d, err := time.ParseDuration(c.SourceTimeout)
	if err != nil || d <= 0 {
		return 8 * time.Second
	}
	return d
}

// SourcesConfig holds configuration for all catalog adapters.
type SourcesConfig struct {
	GitHub      GitHubConfig      `yaml:"github"`
	HackerNews  HackerNewsConfig  `yaml:"hackernews"`
	NPM         NPMConfig         `yaml:"npm"`
	PyPI        PyPIConfig        `yaml:"pypi"`
	ProductHunt ProductHuntConfig `yaml:"producthunt"`
}

// GitHubConfig for the GitHub repository search adapter.
type GitHubConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	Limit   int    `yaml:"limit"`
	BaseURL string `yaml:"base_url"`
}

// HackerNewsConfig for the Hacker News search adapter.
type HackerNewsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Limit   int    `yaml:"limit"`
	BaseURL string `yaml:"base_url"`
}

// NPMConfig for the npm registry adapter.
type NPMConfig struct {
	Enabled bool   `yaml:"enabled"`
	Limit   int    `yaml:"limit"`
	BaseURL string `yaml:"base_url"`
}

// PyPIConfig for the PyPI adapter.
type PyPIConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Limit    int    `yaml:"limit"`
	BaseURL  string `yaml:"base_url"`
	StatsURL string `yaml:"stats_url"`
}

// ProductHuntConfig for the Product Hunt feed adapter.
type ProductHuntConfig struct {
	Enabled         bool     `yaml:"enabled"`
	FeedURL         string   `yaml:"feed_url"`
	Limit           int      `yaml:"limit"`
	ExcludeKeywords []string `yaml:"exclude_keywords"`
}

// CacheConfig configures the source response cache.
type CacheConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Size          int    `yaml:"size"`
	TTL           string `yaml:"ttl"`
	Persistent    bool   `yaml:"persistent"`
	PurgeInterval string `yaml:"purge_interval"`
}

// ParseTTL returns the cache TTL as time.Duration.
func (c CacheConfig) ParseTTL() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// ParsePurgeInterval returns how often the server purges expired entries.
func (c CacheConfig) ParsePurgeInterval() time.Duration {
	d, err := time.ParseDuration(c.PurgeInterval)
	if err != nil || d <= 0 {
		return 6 * time.Hour
	}
	return d
}

// DatabaseConfig configures SQLite storage for the persistent cache.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AlertsConfig configures where threshold advisories go besides the log.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Check: CheckConfig{
			Depth:         "quick",
			Threshold:     70,
			RunTimeout:    "60s",
			SourceTimeout: "8s",
		},
		Sources: SourcesConfig{
			GitHub:      GitHubConfig{Enabled: true, Limit: 20},
			HackerNews:  HackerNewsConfig{Enabled: true, Limit: 20},
			NPM:         NPMConfig{Enabled: true, Limit: 20},
			PyPI:        PyPIConfig{Enabled: true, Limit: 20},
			ProductHunt: ProductHuntConfig{Enabled: true, Limit: 20},
		},
		Cache: CacheConfig{
			Enabled:       true,
			Size:          256,
			TTL:           "1h",
			PurgeInterval: "6h",
		},
		Database: DatabaseConfig{Path: "./realitycheck.db"},
		Server:   ServerConfig{Port: 8080},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REALITYCHECK_DB_PATH"); v != "" {
		cfg.Database.Path = v
		cfg.Cache.Persistent = true
	}
	if v := os.Getenv("REALITYCHECK_DEPTH"); v != "" {
		cfg.Check.Depth = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("REALITYCHECK_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Check.Threshold = n
		}
	}
	if v := os.Getenv("REALITYCHECK_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		cfg.Sources.GitHub.Token = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
	if v := os.Getenv("REALITYCHECK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Webhook.URL = v
		cfg.Alerts.Webhook.Enabled = true
	}
	if v := os.Getenv("REALITYCHECK_WEBHOOK_SECRET"); v != "" {
		cfg.Alerts.Webhook.Secret = v
	}
}
