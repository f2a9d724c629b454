package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration shared by the server and the CLI.
type Config struct {
	API          APIConfig
	Polling      PollingConfig
	Server       ServerConfig
	Storage      StorageConfig
	Cache        CacheConfig
	GitHub       GitHubConfig
	OAuth        OAuthConfig
	Notification NotificationConfig
	Display      DisplayConfig
	SessionFile  string
}

// APIConfig points the CLI at an analysis server.
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PollingConfig controls how the CLI waits for a job.
type PollingConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// ServerConfig controls the HTTP server and its worker pool.
type ServerConfig struct {
	Addr            string
	CORSOrigins     []string
	JobRetention    time.Duration
	CleanupInterval time.Duration
	Workers         int
}

// StorageConfig selects the job store. Driver is memory, sqlite, postgres or redis.
type StorageConfig struct {
	Driver    string `yaml:"driver"`
	DSN       string `yaml:"dsn"`
	RedisAddr string `yaml:"redis_addr"`
}

// CacheConfig enables the Redis cache in front of GitHub when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string
	TTL       time.Duration
}

// GitHubConfig controls the GitHub REST client and its decorators.
type GitHubConfig struct {
	APIBaseURL     string
	Token          string // expanded from env var by Load
	Timeout        time.Duration
	MinDelay       time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// OAuthConfig holds the GitHub OAuth app credentials.
type OAuthConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	JWTSecret    string   `yaml:"jwt_secret"`
	Scopes       []string `yaml:"scopes"`
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "slack"
	WebhookURL string `yaml:"webhook_url"` // required if type is "slack"
}

// DisplayConfig controls what the dashboard and CLI output show.
type DisplayConfig struct {
	ExcludeLanguages []string `yaml:"exclude_languages"`
	MinIntensity     float64  `yaml:"min_intensity"`
	Chart            string   `yaml:"chart"` // "bar" or "bubble"
}

const slackWebhookPrefix = "https://hooks.slack.com/"

// rawConfig is used for YAML unmarshaling (snake_case fields and duration as string).
type rawConfig struct {
	API          rawAPIConfig       `yaml:"api"`
	Polling      rawPollingConfig   `yaml:"polling"`
	Server       rawServerConfig    `yaml:"server"`
	Storage      StorageConfig      `yaml:"storage"`
	Cache        rawCacheConfig     `yaml:"cache"`
	GitHub       rawGitHubConfig    `yaml:"github"`
	OAuth        OAuthConfig        `yaml:"oauth"`
	Notification NotificationConfig `yaml:"notification"`
	Display      DisplayConfig      `yaml:"display"`
	SessionFile  string             `yaml:"session_file"`
}

type rawAPIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type rawPollingConfig struct {
	Interval    string `yaml:"interval"`
	MaxAttempts int    `yaml:"max_attempts"`
}

type rawServerConfig struct {
	Addr            string   `yaml:"addr"`
	CORSOrigins     []string `yaml:"cors_origins"`
	JobRetention    string   `yaml:"job_retention"`
	CleanupInterval string   `yaml:"cleanup_interval"`
	Workers         int      `yaml:"workers"`
}

type rawCacheConfig struct {
	RedisAddr string `yaml:"redis_addr"`
	TTL       string `yaml:"ttl"`
}

type rawGitHubConfig struct {
	APIBaseURL     string `yaml:"api_base_url"`
	Token          string `yaml:"token"`
	Timeout        string `yaml:"timeout"`
	MinDelay       string `yaml:"min_delay"`
	MaxRetries     *int   `yaml:"max_retries"`
	RetryBaseDelay string `yaml:"retry_base_delay"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		API:     APIConfig{BaseURL: "http://localhost:4001/api/v1", Timeout: 10 * time.Second},
		Polling: PollingConfig{Interval: 5 * time.Second, MaxAttempts: 60},
		Server: ServerConfig{
			Addr:            ":4001",
			CORSOrigins:     []string{"http://localhost:4000"},
			JobRetention:    24 * time.Hour,
			CleanupInterval: time.Hour,
			Workers:         4,
		},
		Storage: StorageConfig{Driver: "memory"},
		Cache:   CacheConfig{TTL: time.Hour},
		GitHub: GitHubConfig{
			APIBaseURL:     "https://api.github.com",
			Timeout:        30 * time.Second,
			MaxRetries:     2,
			RetryBaseDelay: 2 * time.Second,
		},
		Notification: NotificationConfig{Type: "log"},
		Display:      DisplayConfig{Chart: "bar"},
		SessionFile:  defaultSessionFile(),
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".skillpiler-session.yaml"
	}
	return filepath.Join(home, ".skillpiler", "session.yaml")
}

// Load reads and parses the YAML config file at path, fills defaults,
// validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()

	if err := setDuration(&cfg.API.Timeout, "api.timeout", raw.API.Timeout); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.Polling.Interval, "polling.interval", raw.Polling.Interval); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.Server.JobRetention, "server.job_retention", raw.Server.JobRetention); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.Server.CleanupInterval, "server.cleanup_interval", raw.Server.CleanupInterval); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.Cache.TTL, "cache.ttl", raw.Cache.TTL); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.GitHub.Timeout, "github.timeout", raw.GitHub.Timeout); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.GitHub.MinDelay, "github.min_delay", raw.GitHub.MinDelay); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.GitHub.RetryBaseDelay, "github.retry_base_delay", raw.GitHub.RetryBaseDelay); err != nil {
		return nil, err
	}

	setString(&cfg.API.BaseURL, raw.API.BaseURL)
	setString(&cfg.Server.Addr, raw.Server.Addr)
	setString(&cfg.Storage.Driver, raw.Storage.Driver)
	setString(&cfg.GitHub.APIBaseURL, raw.GitHub.APIBaseURL)
	setString(&cfg.Notification.Type, raw.Notification.Type)
	setString(&cfg.Display.Chart, raw.Display.Chart)
	setString(&cfg.SessionFile, raw.SessionFile)

	if raw.Polling.MaxAttempts != 0 {
		cfg.Polling.MaxAttempts = raw.Polling.MaxAttempts
	}
	if raw.Server.Workers != 0 {
		cfg.Server.Workers = raw.Server.Workers
	}
	if len(raw.Server.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = raw.Server.CORSOrigins
	}
	if raw.GitHub.MaxRetries != nil {
		cfg.GitHub.MaxRetries = *raw.GitHub.MaxRetries
	}

	cfg.Storage.DSN = raw.Storage.DSN
	cfg.Storage.RedisAddr = raw.Storage.RedisAddr
	cfg.Cache.RedisAddr = raw.Cache.RedisAddr
	cfg.GitHub.Token = raw.GitHub.Token
	cfg.OAuth = raw.OAuth
	cfg.Notification.WebhookURL = raw.Notification.WebhookURL
	cfg.Display.ExcludeLanguages = raw.Display.ExcludeLanguages
	cfg.Display.MinIntensity = raw.Display.MinIntensity

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDuration(dst *time.Duration, field, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", field, raw, err)
	}
	*dst = d
	return nil
}

func setString(dst *string, raw string) {
	if raw != "" {
		*dst = raw
	}
}

func validate(cfg *Config) error {
	if cfg.Polling.Interval <= 0 {
		return fmt.Errorf("polling.interval must be positive, got %v", cfg.Polling.Interval)
	}
	if cfg.Polling.MaxAttempts <= 0 {
		return fmt.Errorf("polling.max_attempts must be positive, got %d", cfg.Polling.MaxAttempts)
	}
	if cfg.Server.Workers <= 0 {
		return fmt.Errorf("server.workers must be positive, got %d", cfg.Server.Workers)
	}
	if cfg.Server.CleanupInterval <= 0 {
		return fmt.Errorf("server.cleanup_interval must be positive, got %v", cfg.Server.CleanupInterval)
	}
	if cfg.GitHub.MaxRetries < 0 {
		return fmt.Errorf("github.max_retries must not be negative, got %d", cfg.GitHub.MaxRetries)
	}

	switch cfg.Storage.Driver {
	case "memory":
	case "sqlite", "postgres":
		if cfg.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required when driver is %q", cfg.Storage.Driver)
		}
	case "redis":
		if cfg.Storage.RedisAddr == "" {
			return fmt.Errorf("storage.redis_addr is required when driver is \"redis\"")
		}
	default:
		return fmt.Errorf("storage.driver must be one of memory, sqlite, postgres, redis, got %q", cfg.Storage.Driver)
	}

	switch cfg.Notification.Type {
	case "log":
	case "slack":
		if cfg.Notification.WebhookURL == "" {
			return fmt.Errorf("notification.webhook_url is required when type is \"slack\"")
		}
		if !strings.HasPrefix(cfg.Notification.WebhookURL, slackWebhookPrefix) {
			return fmt.Errorf("notification.webhook_url must start with %s", slackWebhookPrefix)
		}
	default:
		return fmt.Errorf("notification.type must be \"log\" or \"slack\", got %q", cfg.Notification.Type)
	}

	if cfg.Display.Chart != "bar" && cfg.Display.Chart != "bubble" {
		return fmt.Errorf("display.chart must be \"bar\" or \"bubble\", got %q", cfg.Display.Chart)
	}
	if cfg.Display.MinIntensity < 0 || cfg.Display.MinIntensity > 100 {
		return fmt.Errorf("display.min_intensity must be between 0 and 100, got %v", cfg.Display.MinIntensity)
	}

	if cfg.OAuth.ClientID != "" && cfg.OAuth.JWTSecret == "" {
		return fmt.Errorf("oauth.jwt_secret is required when oauth.client_id is set")
	}

	return nil
}
