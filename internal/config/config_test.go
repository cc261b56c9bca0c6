package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/propfetch/rightmove-scraper/internal/webhook"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
run:
  start_urls:
    - https://www.rightmove.co.uk/properties/123
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "rightmove", cfg.Run.Source)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 5 * time.Second}, cfg.Scraper.RetryDelays)
	require.Equal(t, 30*time.Second, cfg.Scraper.WaitSelectorWindow)
	require.True(t, cfg.Browser.Headless)
	require.Equal(t, 3, cfg.Webhooks.RetryCount)
	require.Equal(t, time.Second, cfg.Webhooks.BaseDelay)
	require.Equal(t, 30*time.Second, cfg.Metrics.MemorySampleInterval)
	require.Equal(t, "fs", cfg.Sink.Kind)
	require.Equal(t, "none", cfg.Archive.Kind)
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := writeConfig(t, `
run:
  source: rightmove
  start_urls:
    - https://www.rightmove.co.uk/properties/123
  max_items: 10
scraper:
  retry_delays: [500ms, 1s]
webhooks:
  retry_count: 5
  subscriptions:
    - url: https://hooks.example.com/runs
      event_types: [RUN_FINISHED]
sink:
  kind: postgres
  dsn: postgres://scraper@localhost:5432/listings
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 10, cfg.Run.MaxItems)
	require.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, cfg.Scraper.RetryDelays)
	require.Equal(t, 5, cfg.Webhooks.RetryCount)
	require.Equal(t, "postgres", cfg.Sink.Kind)
	require.Len(t, cfg.Webhooks.Subscriptions, 1)
	require.Equal(t, []webhook.EventKind{webhook.EventRunFinished}, cfg.Webhooks.Subscriptions[0].EventTypes)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func baseConfig() Config {
	return Config{
		Run: RunConfig{
			Source:    "rightmove",
			StartURLs: []string{"https://www.rightmove.co.uk/properties/123"},
		},
		Scraper:  ScraperConfig{RetryDelays: []time.Duration{time.Second}},
		Webhooks: WebhooksConfig{RetryCount: 3},
		Metrics:  MetricsConfig{MemorySampleInterval: 30 * time.Second},
		Sink:     SinkConfig{Kind: "fs", Dir: "data/run"},
		Archive:  ArchiveConfig{Kind: "none"},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing source", func(c *Config) { c.Run.Source = "" }, "run.source"},
		{"no targets", func(c *Config) { c.Run.StartURLs = nil }, "start_urls"},
		{"empty retry delays", func(c *Config) { c.Scraper.RetryDelays = nil }, "retry_delays"},
		{"negative retry delay", func(c *Config) { c.Scraper.RetryDelays = []time.Duration{-time.Second} }, "retry_delays"},
		{"zero webhook retries", func(c *Config) { c.Webhooks.RetryCount = 0 }, "retry_count"},
		{"zero sample interval", func(c *Config) { c.Metrics.MemorySampleInterval = 0 }, "memory_sample_interval"},
		{"fs sink without dir", func(c *Config) { c.Sink.Dir = "" }, "sink.dir"},
		{"postgres sink without dsn", func(c *Config) { c.Sink.Kind = "postgres" }, "sink.dsn"},
		{"unknown sink", func(c *Config) { c.Sink.Kind = "s3" }, "sink.kind"},
		{"local archive without dir", func(c *Config) { c.Archive.Kind = "local" }, "archive.dir"},
		{"gcs archive without bucket", func(c *Config) { c.Archive.Kind = "gcs" }, "archive.bucket"},
		{"unknown archive", func(c *Config) { c.Archive.Kind = "tape" }, "archive.kind"},
		{"subscription without url", func(c *Config) {
			c.Webhooks.Subscriptions = []webhook.Subscription{{EventTypes: []webhook.EventKind{webhook.EventRunFinished}}}
		}, "url"},
		{"subscription without events", func(c *Config) {
			c.Webhooks.Subscriptions = []webhook.Subscription{{URL: "https://hooks.example.com"}}
		}, "event_types"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
