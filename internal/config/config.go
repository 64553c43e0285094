// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/kbo-game-crawler/internal/teams"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Teams     []teams.Entry   `mapstructure:"teams"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Snapshots SnapshotConfig  `mapstructure:"snapshots"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Backfill  BackfillConfig  `mapstructure:"backfill"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int    `mapstructure:"port"`
	APIKey                string `mapstructure:"api_key"`
	RequestTimeoutSeconds int    `mapstructure:"request_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// BrowserConfig configures the headless Chrome sessions.
type BrowserConfig struct {
	ExecPath                 string `mapstructure:"exec_path"`
	UserAgent                string `mapstructure:"user_agent"`
	WindowWidth              int    `mapstructure:"window_width"`
	WindowHeight             int    `mapstructure:"window_height"`
	WaitTimeoutSeconds       int    `mapstructure:"wait_timeout_seconds"`
	TableWaitSeconds         int    `mapstructure:"table_wait_seconds"`
	NavigationTimeoutSeconds int    `mapstructure:"navigation_timeout_seconds"`
}

// HTTPConfig configures the static page fetcher.
type HTTPConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// SourcesConfig points the crawlers at their sites.
type SourcesConfig struct {
	SiteURL    string `mapstructure:"site_url"`
	RankingURL string `mapstructure:"ranking_url"`
	AnchorTeam string `mapstructure:"anchor_team"`
}

// RateLimitConfig bounds per-host request rates.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// DatabaseConfig selects and tunes the persistence backend.
type DatabaseConfig struct {
	Backend     string `mapstructure:"backend"`
	DSN         string `mapstructure:"dsn"`
	MaxConns    int32  `mapstructure:"max_conns"`
	MinConns    int32  `mapstructure:"min_conns"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

// CacheConfig enables the Redis ranking cache when RedisURL is set.
type CacheConfig struct {
	RedisURL          string `mapstructure:"redis_url"`
	RankingTTLSeconds int    `mapstructure:"ranking_ttl_seconds"`
}

// SnapshotConfig selects where crawled HTML is archived.
type SnapshotConfig struct {
	Backend  string              `mapstructure:"backend"`
	Bucket   string              `mapstructure:"bucket"`
	Endpoint string              `mapstructure:"endpoint"`
	Prefix   string              `mapstructure:"prefix"`
	Local    LocalSnapshotConfig `mapstructure:"local"`
}

// LocalSnapshotConfig holds filesystem snapshot settings.
type LocalSnapshotConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// PubSubConfig holds metadata for game update events. Publishing is off without a project.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// BackfillConfig bounds the concurrent lineup backfill.
type BackfillConfig struct {
	Concurrency    int `mapstructure:"concurrency"`
	MaxAttempts    int `mapstructure:"max_attempts"`
	BackoffSeconds int `mapstructure:"backoff_seconds"`
}

// Backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendNone     = "none"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KBO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(cfg.Teams) == 0 {
		cfg.Teams = teams.KBOEntries()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("logging.development", false)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.wait_timeout_seconds", 30)
	v.SetDefault("browser.table_wait_seconds", 5)
	v.SetDefault("browser.navigation_timeout_seconds", 45)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("sources.site_url", "https://www.giantsclub.com")
	v.SetDefault("sources.ranking_url", "https://www.koreabaseball.com/Record/TeamRank/TeamRankDaily.aspx")
	v.SetDefault("sources.anchor_team", "롯데")
	v.SetDefault("rate_limit.rps", 1.0)
	v.SetDefault("rate_limit.burst", 2)
	v.SetDefault("database.backend", BackendMemory)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("cache.ranking_ttl_seconds", 600)
	v.SetDefault("snapshots.backend", BackendNone)
	v.SetDefault("snapshots.prefix", "snapshots")
	v.SetDefault("pubsub.topic_name", "kbo-game-updates")
	v.SetDefault("backfill.concurrency", 2)
	v.SetDefault("backfill.max_attempts", 2)
	v.SetDefault("backfill.backoff_seconds", 2)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.WaitTimeoutSeconds <= 0 {
		return fmt.Errorf("browser.wait_timeout_seconds must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must be >= 0")
	}
	switch c.Database.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("database.backend %q is not one of memory, postgres", c.Database.Backend)
	}
	switch c.Snapshots.Backend {
	case BackendNone, "":
	case BackendLocal:
		if c.Snapshots.Local.BaseDir == "" {
			return fmt.Errorf("snapshots.local.base_dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Snapshots.Bucket == "" {
			return fmt.Errorf("snapshots.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("snapshots.backend %q is not one of none, local, gcs", c.Snapshots.Backend)
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is")
	}
	if c.Backfill.Concurrency < 0 || c.Backfill.MaxAttempts < 0 {
		return fmt.Errorf("backfill.concurrency and backfill.max_attempts must be >= 0")
	}
	if _, err := teams.New(c.Teams); err != nil {
		return fmt.Errorf("teams: %w", err)
	}
	return nil
}

// Seconds converts a whole-second setting.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
