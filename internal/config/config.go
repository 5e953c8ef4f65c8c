// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/matchpulse/feedgate/internal/feed"
)

// Config captures every service knob loaded via Viper.
type Config struct {
	Server    ServerConfig            `mapstructure:"server"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Storage   StorageConfig           `mapstructure:"storage"`
	PubSub    PubSubConfig            `mapstructure:"pubsub"`
	Adapter   AdapterConfig           `mapstructure:"adapter"`
	UserAgent string                  `mapstructure:"user_agent"`
	Sources   map[string]SourceConfig `mapstructure:"sources"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// StorageConfig selects and parameterizes the snapshot backend.
type StorageConfig struct {
	// Backend is one of local, gcs, postgres.
	Backend   string `mapstructure:"backend"`
	BaseDir   string `mapstructure:"base_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
}

// PubSubConfig holds metadata for refresh-event notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// AdapterConfig carries hot-cache TTLs per capability.
type AdapterConfig struct {
	OddsTTLSeconds       int `mapstructure:"odds_ttl_seconds"`
	StatsTTLSeconds      int `mapstructure:"stats_ttl_seconds"`
	HistoricalTTLSeconds int `mapstructure:"historical_ttl_seconds"`
	LiveTTLSeconds       int `mapstructure:"live_ttl_seconds"`
}

// SourceConfig describes one external provider instance.
type SourceConfig struct {
	OriginURL       string   `mapstructure:"origin_url"`
	Kind            string   `mapstructure:"kind"` // json or html
	Shape           string   `mapstructure:"shape"`
	MinDelaySeconds int      `mapstructure:"min_delay_seconds"`
	MaxRetries      int      `mapstructure:"max_retries"`
	TimeoutSeconds  int      `mapstructure:"timeout_seconds"`
	RespectPolicy   bool     `mapstructure:"respect_policy"`
	RetryUnsafe     bool     `mapstructure:"retry_unsafe"`
	FailureThresh   int      `mapstructure:"failure_threshold"`
	ResetSeconds    int      `mapstructure:"reset_timeout_seconds"`
	KeyFields       []string `mapstructure:"key_fields"`
	RowSelector     string   `mapstructure:"row_selector"`
	Columns         []string `mapstructure:"columns"`
	Capability      string   `mapstructure:"capability"` // odds, stats, historical, live
}

// Feed converts the viper block into the immutable runtime config.
func (s SourceConfig) Feed(name string) feed.SourceConfig {
	return feed.SourceConfig{
		Name:          name,
		OriginURL:     s.OriginURL,
		MinDelay:      time.Duration(s.MinDelaySeconds) * time.Second,
		MaxRetries:    s.MaxRetries,
		Timeout:       time.Duration(s.TimeoutSeconds) * time.Second,
		RespectPolicy: s.RespectPolicy,
		Shape:         feed.Shape(s.Shape),
	}
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FEEDGATE")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.base_dir", "./data/snapshots")
	v.SetDefault("storage.table", "source_snapshots")
	v.SetDefault("pubsub.enabled", false)
	v.SetDefault("adapter.odds_ttl_seconds", 30)
	v.SetDefault("adapter.stats_ttl_seconds", 300)
	v.SetDefault("adapter.historical_ttl_seconds", 86400)
	v.SetDefault("adapter.live_ttl_seconds", 10)
	v.SetDefault("user_agent", "feedgate/0.1")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir is required for the local backend")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.PubSub.Enabled && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub is enabled")
	}
	for name, src := range c.Sources {
		if err := src.validate(); err != nil {
			return fmt.Errorf("source %q: %w", name, err)
		}
	}
	return nil
}

func (s SourceConfig) validate() error {
	if s.OriginURL == "" {
		return fmt.Errorf("origin_url is required")
	}
	switch s.Kind {
	case "json", "html":
	default:
		return fmt.Errorf("kind must be json or html, got %q", s.Kind)
	}
	switch feed.Shape(s.Shape) {
	case feed.ShapeTable, feed.ShapeMap, feed.ShapeList:
	default:
		return fmt.Errorf("shape must be table, map, or list, got %q", s.Shape)
	}
	if s.MinDelaySeconds < 0 || s.MinDelaySeconds > 60 {
		return fmt.Errorf("min_delay_seconds must be within [0, 60]")
	}
	if s.MaxRetries < 0 || s.MaxRetries > 10 {
		return fmt.Errorf("max_retries must be within [0, 10]")
	}
	if s.TimeoutSeconds <= 0 {
		return fmt.Errorf("timeout_seconds must be > 0")
	}
	if s.Kind == "html" && (s.RowSelector == "" || len(s.Columns) == 0) {
		return fmt.Errorf("html sources require row_selector and columns")
	}
	switch s.Capability {
	case "odds", "stats", "historical", "live":
	default:
		return fmt.Errorf("capability must be odds, stats, historical, or live, got %q", s.Capability)
	}
	return nil
}
