package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server   ServerConfig   `toml:"server"`   // HTTP server settings
	Radar    RadarConfig    `toml:"radar"`    // Live position feed settings
	Storage  StorageConfig  `toml:"storage"`  // Data persistence settings
	Crawler  CrawlerConfig  `toml:"crawler"`  // Metadata crawler settings
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	Airlines AirlinesConfig `toml:"airlines"` // Airline directory settings
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Origins allowed for CORS requests (["*"] for all)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
}

// RadarConfig contains live position feed configuration
type RadarConfig struct {
	// Allowed values:
	// - "dump1090": aircraft.json produced by dump1090 / tar1090 receivers
	// - "vrs": VirtualRadarServer AircraftList.json endpoint
	SourceType string `toml:"source_type"`
	SourceURL  string `toml:"source_url"` // Base URL of the radar feed

	PollIntervalSecs int    `toml:"poll_interval_seconds"` // How often to run the flight update cycle
	TimeoutSecs      int    `toml:"timeout_seconds"`       // HTTP timeout for feed requests
	MilitaryOnly     bool   `toml:"military_only"`         // Track only aircraft in known military Mode-S ranges
	MilRangesPath    string `toml:"mil_ranges_path"`       // Path to mil_ranges.json (tar1090-db format)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Path              string `toml:"path"`                 // Path to the SQLite database file
	RetentionMinutes  int    `toml:"retention_minutes"`    // Flight/position retention; 0 disables expiry
	MaxPositionsInAPI int    `toml:"max_positions_in_api"` // Maximum positions returned per track request
}

// CrawlerConfig contains metadata crawler configuration
type CrawlerConfig struct {
	Enabled      bool `toml:"enabled"`          // Enable the background metadata crawler
	IntervalSecs int  `toml:"interval_seconds"` // How often to drain the processing queue
	BatchSize    int  `toml:"batch_size"`       // Maximum queue entries per crawl cycle

	MaxAttempts            int `toml:"max_attempts"`              // Not-found attempts before an entry is purged
	ServiceErrorResetHours int `toml:"service_error_reset_hours"` // Cooldown before service-error entries retry

	StalenessDays           int `toml:"staleness_days"`            // Re-crawl complete records older than this
	IncompleteStalenessDays int `toml:"incomplete_staleness_days"` // Re-crawl incomplete records older than this

	BreakerFailureThreshold int `toml:"breaker_failure_threshold"` // Consecutive failures before a circuit opens
	BreakerBaseBackoffSecs  int `toml:"breaker_base_backoff_secs"` // Base backoff once a circuit opens
	BreakerMaxBackoffSecs   int `toml:"breaker_max_backoff_secs"`  // Backoff ceiling across repeated trips

	SourceTimeoutSecs     int     `toml:"source_timeout_seconds"`    // HTTP timeout per metadata source request
	SourceRateLimitPerSec float64 `toml:"source_rate_limit_per_sec"` // Request rate cap per source (0 = unlimited)
	NighthawkProxyURL     string  `toml:"nighthawk_proxy_url"`       // Optional Nighthawk proxy source base URL

	ActivityLogSize int `toml:"activity_log_size"` // Entries kept in the in-memory activity log
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`       // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"`      // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`        // Optional rotating log file path
	MaxSizeMB  int    `toml:"max_size_mb"` // Rotate after this many megabytes
	MaxBackups int    `toml:"max_backups"` // Rotated files to keep
}

// AirlinesConfig contains airline directory configuration
type AirlinesConfig struct {
	OperatorsDBPath string `toml:"operators_db_path"` // Path to operators.json (Mictronics format)
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,
		"configs/config.toml",
		"config.toml",
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// applyDefaults fills unset fields with their default values
func (c *Config) applyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 30
	}
	if c.Server.WriteTimeoutSecs == 0 {
		c.Server.WriteTimeoutSecs = 30
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 120
	}

	if c.Radar.PollIntervalSecs == 0 {
		c.Radar.PollIntervalSecs = 1
	}
	if c.Radar.TimeoutSecs == 0 {
		c.Radar.TimeoutSecs = 10
	}

	if c.Storage.Path == "" {
		c.Storage.Path = "flightradar.db"
	}
	if c.Storage.MaxPositionsInAPI == 0 {
		c.Storage.MaxPositionsInAPI = 500
	}

	if c.Crawler.IntervalSecs == 0 {
		c.Crawler.IntervalSecs = 20
	}
	if c.Crawler.BatchSize == 0 {
		c.Crawler.BatchSize = 50
	}
	if c.Crawler.MaxAttempts == 0 {
		c.Crawler.MaxAttempts = 5
	}
	if c.Crawler.ServiceErrorResetHours == 0 {
		c.Crawler.ServiceErrorResetHours = 6
	}
	if c.Crawler.StalenessDays == 0 {
		c.Crawler.StalenessDays = 120
	}
	if c.Crawler.IncompleteStalenessDays == 0 {
		c.Crawler.IncompleteStalenessDays = 7
	}
	if c.Crawler.BreakerFailureThreshold == 0 {
		c.Crawler.BreakerFailureThreshold = 5
	}
	if c.Crawler.BreakerBaseBackoffSecs == 0 {
		c.Crawler.BreakerBaseBackoffSecs = 300
	}
	if c.Crawler.BreakerMaxBackoffSecs == 0 {
		c.Crawler.BreakerMaxBackoffSecs = 3600
	}
	if c.Crawler.SourceTimeoutSecs == 0 {
		c.Crawler.SourceTimeoutSecs = 5
	}
	if c.Crawler.ActivityLogSize == 0 {
		c.Crawler.ActivityLogSize = 200
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Radar.SourceType != "dump1090" && c.Radar.SourceType != "vrs" {
		return fmt.Errorf("invalid radar source type: %s (must be 'dump1090' or 'vrs')", c.Radar.SourceType)
	}
	if c.Radar.SourceURL == "" {
		return fmt.Errorf("radar source_url is required")
	}
	if c.Radar.MilitaryOnly && c.Radar.MilRangesPath == "" {
		return fmt.Errorf("mil_ranges_path is required when military_only is enabled")
	}

	if c.Crawler.BreakerMaxBackoffSecs < c.Crawler.BreakerBaseBackoffSecs {
		return fmt.Errorf("breaker_max_backoff_secs (%d) must be >= breaker_base_backoff_secs (%d)",
			c.Crawler.BreakerMaxBackoffSecs, c.Crawler.BreakerBaseBackoffSecs)
	}
	if c.Crawler.IncompleteStalenessDays > c.Crawler.StalenessDays {
		return fmt.Errorf("incomplete_staleness_days (%d) must be <= staleness_days (%d)",
			c.Crawler.IncompleteStalenessDays, c.Crawler.StalenessDays)
	}

	return nil
}
