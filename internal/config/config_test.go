package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
[radar]
source_type = "dump1090"
source_url = "http://localhost/data/aircraft.json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 1, cfg.Radar.PollIntervalSecs)
	assert.Equal(t, 5, cfg.Crawler.MaxAttempts)
	assert.Equal(t, 300, cfg.Crawler.BreakerBaseBackoffSecs)
	assert.Equal(t, 3600, cfg.Crawler.BreakerMaxBackoffSecs)
	assert.Equal(t, 120, cfg.Crawler.StalenessDays)
	assert.Equal(t, 7, cfg.Crawler.IncompleteStalenessDays)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 9000

[radar]
source_type = "vrs"
source_url = "http://vrs.local/AircraftList.json"
poll_interval_seconds = 5

[crawler]
enabled = true
batch_size = 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "vrs", cfg.Radar.SourceType)
	assert.Equal(t, 5, cfg.Radar.PollIntervalSecs)
	assert.True(t, cfg.Crawler.Enabled)
	assert.Equal(t, 10, cfg.Crawler.BatchSize)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing source url", `
[radar]
source_type = "dump1090"
`},
		{"unknown source type", `
[radar]
source_type = "flarm"
source_url = "http://localhost/feed"
`},
		{"military only without ranges", `
[radar]
source_type = "dump1090"
source_url = "http://localhost/feed"
military_only = true
`},
		{"backoff ceiling below base", `
[radar]
source_type = "dump1090"
source_url = "http://localhost/feed"

[crawler]
breaker_base_backoff_secs = 600
breaker_max_backoff_secs = 60
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadWithFallbackPrefersGivenPath(t *testing.T) {
	path := writeConfig(t, `
[radar]
source_type = "dump1090"
source_url = "http://localhost/feed"
`)

	cfg, err := LoadWithFallback(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost/feed", cfg.Radar.SourceURL)

	_, err = LoadWithFallback(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
