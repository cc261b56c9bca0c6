// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/propfetch/rightmove-scraper/internal/webhook"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Run      RunConfig      `mapstructure:"run"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	Webhooks WebhooksConfig `mapstructure:"webhooks"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// RunConfig selects the source and the task list for one run.
type RunConfig struct {
	Source     string   `mapstructure:"source"`
	StartURLs  []string `mapstructure:"start_urls"`
	SearchURLs []string `mapstructure:"search_urls"`
	MaxItems   int      `mapstructure:"max_items"`
}

// ScraperConfig governs the extraction pipeline.
type ScraperConfig struct {
	RetryDelays        []time.Duration `mapstructure:"retry_delays"`
	WaitSelectorWindow time.Duration   `mapstructure:"wait_selector_window"`
}

// BrowserConfig controls the headless browser.
type BrowserConfig struct {
	Headless   bool          `mapstructure:"headless"`
	UserAgent  string        `mapstructure:"user_agent"`
	NavTimeout time.Duration `mapstructure:"nav_timeout"`
}

// WebhooksConfig controls lifecycle event delivery.
type WebhooksConfig struct {
	RetryCount    int                    `mapstructure:"retry_count"`
	BaseDelay     time.Duration          `mapstructure:"base_delay"`
	Timeout       time.Duration          `mapstructure:"timeout"`
	Subscriptions []webhook.Subscription `mapstructure:"subscriptions"`
}

// MetricsConfig governs run performance accounting.
type MetricsConfig struct {
	MemorySampleInterval time.Duration `mapstructure:"memory_sample_interval"`
}

// SinkConfig selects and configures the run output store.
type SinkConfig struct {
	Kind          string `mapstructure:"kind"`
	Dir           string `mapstructure:"dir"`
	DSN           string `mapstructure:"dsn"`
	ListingsTable string `mapstructure:"listings_table"`
	ReportsTable  string `mapstructure:"reports_table"`
}

// ArchiveConfig selects the failure snapshot store.
type ArchiveConfig struct {
	Kind   string `mapstructure:"kind"`
	Dir    string `mapstructure:"dir"`
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for the optional run event topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ServerConfig controls the optional status HTTP server.
type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
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
	v.SetDefault("run.source", "rightmove")
	v.SetDefault("scraper.retry_delays", []string{"1s", "2s", "5s"})
	v.SetDefault("scraper.wait_selector_window", "30s")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("browser.nav_timeout", "30s")
	v.SetDefault("webhooks.retry_count", 3)
	v.SetDefault("webhooks.base_delay", "1s")
	v.SetDefault("webhooks.timeout", "30s")
	v.SetDefault("metrics.memory_sample_interval", "30s")
	v.SetDefault("sink.kind", "fs")
	v.SetDefault("sink.dir", "data/run")
	v.SetDefault("sink.listings_table", "listings")
	v.SetDefault("sink.reports_table", "run_reports")
	v.SetDefault("archive.kind", "none")
	v.SetDefault("archive.prefix", "snapshots")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Run.Source == "" {
		return fmt.Errorf("run.source must be set")
	}
	if len(c.Run.StartURLs) == 0 && len(c.Run.SearchURLs) == 0 {
		return fmt.Errorf("run.start_urls or run.search_urls must be set")
	}
	if len(c.Scraper.RetryDelays) == 0 {
		return fmt.Errorf("scraper.retry_delays must not be empty")
	}
	for _, d := range c.Scraper.RetryDelays {
		if d <= 0 {
			return fmt.Errorf("scraper.retry_delays entries must be > 0")
		}
	}
	if c.Webhooks.RetryCount <= 0 {
		return fmt.Errorf("webhooks.retry_count must be > 0")
	}
	if c.Metrics.MemorySampleInterval <= 0 {
		return fmt.Errorf("metrics.memory_sample_interval must be > 0")
	}
	switch c.Sink.Kind {
	case "fs":
		if c.Sink.Dir == "" {
			return fmt.Errorf("sink.dir must be set for the fs sink")
		}
	case "postgres":
		if c.Sink.DSN == "" {
			return fmt.Errorf("sink.dsn must be set for the postgres sink")
		}
	default:
		return fmt.Errorf("unknown sink.kind %q", c.Sink.Kind)
	}
	switch c.Archive.Kind {
	case "none", "":
	case "local":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir must be set for the local archive")
		}
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set for the gcs archive")
		}
	default:
		return fmt.Errorf("unknown archive.kind %q", c.Archive.Kind)
	}
	for i, sub := range c.Webhooks.Subscriptions {
		if sub.URL == "" {
			return fmt.Errorf("webhooks.subscriptions[%d].url must be set", i)
		}
		if len(sub.EventTypes) == 0 {
			return fmt.Errorf("webhooks.subscriptions[%d].event_types must not be empty", i)
		}
	}
	return nil
}
