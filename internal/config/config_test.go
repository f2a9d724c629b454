package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
api:
  base_url: http://analysis:4001/api/v1
  timeout: 5s
polling:
  interval: 2s
  max_attempts: 30
server:
  addr: ":8080"
  cors_origins: ["https://skills.example"]
  job_retention: 48h
  workers: 8
storage:
  driver: sqlite
  dsn: /var/lib/skillpiler.db
cache:
  redis_addr: localhost:6379
  ttl: 30m
github:
  token: ghp_abc
  min_delay: 250ms
  max_retries: 0
display:
  exclude_languages: [HTML, CSS]
  min_intensity: 5
  chart: bubble
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.BaseURL != "http://analysis:4001/api/v1" || cfg.API.Timeout != 5*time.Second {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.Polling.Interval != 2*time.Second || cfg.Polling.MaxAttempts != 30 {
		t.Errorf("Polling = %+v", cfg.Polling)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.Workers != 8 || cfg.Server.JobRetention != 48*time.Hour {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Server.CleanupInterval != time.Hour {
		t.Errorf("CleanupInterval = %v, want default 1h", cfg.Server.CleanupInterval)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://skills.example" {
		t.Errorf("CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "/var/lib/skillpiler.db" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" || cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.GitHub.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want explicit 0", cfg.GitHub.MaxRetries)
	}
	if cfg.GitHub.MinDelay != 250*time.Millisecond || cfg.GitHub.APIBaseURL != "https://api.github.com" {
		t.Errorf("GitHub = %+v", cfg.GitHub)
	}
	if cfg.Display.Chart != "bubble" || cfg.Display.MinIntensity != 5 || len(cfg.Display.ExcludeLanguages) != 2 {
		t.Errorf("Display = %+v", cfg.Display)
	}
}

func TestLoad_EmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := Default()
	if cfg.Polling != def.Polling {
		t.Errorf("Polling = %+v, want %+v", cfg.Polling, def.Polling)
	}
	if cfg.API != def.API {
		t.Errorf("API = %+v, want %+v", cfg.API, def.API)
	}
	if cfg.Storage.Driver != "memory" || cfg.Notification.Type != "log" {
		t.Errorf("Storage = %+v, Notification = %+v", cfg.Storage, cfg.Notification)
	}
	if cfg.GitHub.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.GitHub.MaxRetries)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SKILLPILER_TEST_TOKEN", "ghp_from_env")
	cfg, err := Load(writeConfig(t, "github:\n  token: ${SKILLPILER_TEST_TOKEN}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GitHub.Token != "ghp_from_env" {
		t.Errorf("Token = %q, want ghp_from_env", cfg.GitHub.Token)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Fatal("Load: expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "polling: [broken"))
	if err == nil {
		t.Fatal("Load: expected error for invalid YAML")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad duration", "polling:\n  interval: soon\n", "polling.interval"},
		{"negative interval", "polling:\n  interval: -1s\n", "polling.interval must be positive"},
		{"negative attempts", "polling:\n  max_attempts: -3\n", "polling.max_attempts"},
		{"unknown driver", "storage:\n  driver: mongo\n", "storage.driver"},
		{"sqlite without dsn", "storage:\n  driver: sqlite\n", "storage.dsn"},
		{"redis without addr", "storage:\n  driver: redis\n", "storage.redis_addr"},
		{"slack without webhook", "notification:\n  type: slack\n", "webhook_url is required"},
		{"slack bad webhook", "notification:\n  type: slack\n  webhook_url: https://example.com/x\n", "must start with"},
		{"unknown notifier", "notification:\n  type: email\n", "notification.type"},
		{"unknown chart", "display:\n  chart: pie\n", "display.chart"},
		{"intensity out of range", "display:\n  min_intensity: 150\n", "display.min_intensity"},
		{"oauth without secret", "oauth:\n  client_id: abc\n", "oauth.jwt_secret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatalf("Load: expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
