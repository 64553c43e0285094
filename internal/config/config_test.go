package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  api_key: secret
logging:
  development: true
browser:
  exec_path: /usr/bin/chromium
  wait_timeout_seconds: 20
http:
  timeout_seconds: 45
sources:
  site_url: http://localhost:9000
  anchor_team: 롯데
rate_limit:
  rps: 0.5
  burst: 1
database:
  backend: postgres
  dsn: postgres://kbo@localhost/kbo
  max_conns: 8
snapshots:
  backend: local
  local:
    base_dir: /tmp/kbo
teams:
  - short: 롯데
    full: 롯데 자이언츠
    code: LT
  - short: SSG
    full: SSG 랜더스
    code: SK
    aliases: [SK]
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.APIKey != "secret" {
		t.Fatalf("expected server overrides, got %+v", cfg.Server)
	}
	if !cfg.Logging.Development {
		t.Fatalf("expected development logging")
	}
	if cfg.Browser.ExecPath != "/usr/bin/chromium" || cfg.Browser.WaitTimeoutSeconds != 20 {
		t.Fatalf("expected browser overrides, got %+v", cfg.Browser)
	}
	if cfg.Browser.WindowWidth != 1920 {
		t.Fatalf("expected default window width, got %d", cfg.Browser.WindowWidth)
	}
	if cfg.Database.Backend != BackendPostgres || cfg.Database.MaxConns != 8 {
		t.Fatalf("expected postgres database, got %+v", cfg.Database)
	}
	if cfg.Snapshots.Local.BaseDir != "/tmp/kbo" {
		t.Fatalf("expected snapshot base dir, got %+v", cfg.Snapshots)
	}
	if len(cfg.Teams) != 2 || cfg.Teams[1].Aliases[0] != "SK" {
		t.Fatalf("expected custom team table, got %+v", cfg.Teams)
	}
	if got := Seconds(cfg.HTTP.TimeoutSeconds); got != 45*time.Second {
		t.Fatalf("expected 45s http timeout, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Backend != BackendMemory {
		t.Fatalf("expected memory backend, got %s", cfg.Database.Backend)
	}
	if cfg.Browser.WaitTimeoutSeconds != 30 {
		t.Fatalf("expected 30s wait timeout, got %d", cfg.Browser.WaitTimeoutSeconds)
	}
	if len(cfg.Teams) != 10 {
		t.Fatalf("expected the ten default clubs, got %d", len(cfg.Teams))
	}
	if cfg.Snapshots.Backend != BackendNone {
		t.Fatalf("expected snapshots disabled, got %s", cfg.Snapshots.Backend)
	}
	if cfg.Backfill.Concurrency != 2 || cfg.Backfill.MaxAttempts != 2 {
		t.Fatalf("unexpected backfill defaults %+v", cfg.Backfill)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("KBO_SERVER_PORT", "7070")
	t.Setenv("KBO_SOURCES_ANCHOR_TEAM", "NC")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port override, got %d", cfg.Server.Port)
	}
	if cfg.Sources.AnchorTeam != "NC" {
		t.Fatalf("expected env anchor override, got %s", cfg.Sources.AnchorTeam)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"postgres without dsn", func(c *Config) { c.Database.Backend = BackendPostgres }, "database.dsn"},
		{"unknown backend", func(c *Config) { c.Database.Backend = "sqlite" }, "database.backend"},
		{"gcs without bucket", func(c *Config) { c.Snapshots.Backend = BackendGCS }, "snapshots.bucket"},
		{"local without dir", func(c *Config) { c.Snapshots.Backend = BackendLocal }, "snapshots.local.base_dir"},
		{"pubsub without topic", func(c *Config) { c.PubSub.ProjectID = "p"; c.PubSub.TopicName = "" }, "pubsub.topic_name"},
		{"bad teams", func(c *Config) { c.Teams = nil }, "teams"},
		{"negative rps", func(c *Config) { c.RateLimit.RPS = -1 }, "rate_limit.rps"},
		{"negative backfill", func(c *Config) { c.Backfill.Concurrency = -1 }, "backfill.concurrency"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
