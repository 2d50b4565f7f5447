// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Output   OutputConfig   `mapstructure:"output"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	DB       DBConfig       `mapstructure:"db"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Ops      OpsConfig      `mapstructure:"ops"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// CrawlConfig shapes the crawl itself: the seed search, the education filter,
// and the pagination bound.
type CrawlConfig struct {
	SeedURL        string   `mapstructure:"seed_url"`
	CountryKeyword string   `mapstructure:"country_keyword"`
	FieldKeywords  []string `mapstructure:"field_keywords"`
	MaxPages       int      `mapstructure:"max_pages"`
	UserAgents     []string `mapstructure:"user_agents"`
}

// RetryConfig controls the transient-failure retry policy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// ThrottleConfig bounds the adaptive inter-fetch delay.
type ThrottleConfig struct {
	Floor   time.Duration `mapstructure:"floor"`
	Ceiling time.Duration `mapstructure:"ceiling"`
}

// ProbeConfig controls the static probe fetch ahead of headless promotion.
type ProbeConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
	// MinHTMLBytes is the detector threshold under which a script-heavy body
	// counts as a JS shell.
	MinHTMLBytes int `mapstructure:"min_html_bytes"`
}

// HeadlessConfig configures the browser rendering subsystem.
type HeadlessConfig struct {
	NavTimeout time.Duration `mapstructure:"nav_timeout"`
	HostQPS    float64       `mapstructure:"host_qps"`
}

// OutputConfig selects where emitted records land.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// ArchiveConfig controls raw HTML snapshot archival.
type ArchiveConfig struct {
	// Backend is "", "local", or "gcs"; empty disables archival.
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres record sink.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// PubSubConfig controls the optional Pub/Sub record publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// OpsConfig configures the in-run HTTP ops endpoint; zero port disables it.
type OpsConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PROFILESCOUT")
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
	v.SetDefault("crawl.country_keyword", "France")
	v.SetDefault("crawl.field_keywords", []string{"engineering", "medical", "computer science"})
	v.SetDefault("crawl.max_pages", 10)
	v.SetDefault("crawl.user_agents", []string{})
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "30s")
	v.SetDefault("throttle.floor", "1s")
	v.SetDefault("throttle.ceiling", "10s")
	v.SetDefault("probe.enabled", true)
	v.SetDefault("probe.timeout", "15s")
	v.SetDefault("probe.min_html_bytes", 2048)
	v.SetDefault("headless.nav_timeout", "30s")
	v.SetDefault("headless.host_qps", 0.5)
	v.SetDefault("output.path", "data/profiles.jsonl")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("db.table", "profiles")
	v.SetDefault("ops.port", 0)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Crawl.SeedURL == "" {
		return fmt.Errorf("crawl.seed_url must be set")
	}
	if c.Crawl.CountryKeyword == "" {
		return fmt.Errorf("crawl.country_keyword must be set")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("retry.max_attempts must be > 0")
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be > 0")
	}
	if c.Throttle.Floor <= 0 {
		return fmt.Errorf("throttle.floor must be > 0")
	}
	if c.Throttle.Ceiling < c.Throttle.Floor {
		return fmt.Errorf("throttle.ceiling must be >= throttle.floor")
	}
	if c.Headless.NavTimeout <= 0 {
		return fmt.Errorf("headless.nav_timeout must be > 0")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path must be set")
	}
	switch c.Archive.Backend {
	case "", "local", "gcs":
	default:
		return fmt.Errorf("archive.backend must be empty, \"local\", or \"gcs\"")
	}
	if c.Archive.Backend == "local" && c.Archive.Dir == "" {
		return fmt.Errorf("archive.dir must be set for the local backend")
	}
	if c.Archive.Backend == "gcs" && c.Archive.GCSBucket == "" {
		return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicID == "" {
		return fmt.Errorf("pubsub.topic_id must be set when pubsub.project_id is set")
	}
	return nil
}
