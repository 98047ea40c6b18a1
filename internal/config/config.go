package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/abelbrown/stationreviews/internal/logging"
)

// Config is the persistent client configuration
type Config struct {
	// Review service
	API APIConfig `json:"api"`

	// Feed paging
	Feed FeedConfig `json:"feed"`

	// Local mode (SQLite, no server)
	Local LocalConfig `json:"local"`

	// UI Preferences
	UI UIConfig `json:"ui"`

	// DataDir holds logs and the event journal. Empty means ~/.stationreviews.
	DataDir string `json:"data_dir,omitempty"`
}

// APIConfig holds REST transport settings
type APIConfig struct {
	BaseURL        string  `json:"base_url"`
	Username       string  `json:"username,omitempty"`
	AccessToken    string  `json:"access_token,omitempty"`
	TimeoutSeconds int     `json:"timeout_seconds"`
	RatePerSecond  float64 `json:"rate_per_second"` // client-side request rate limit
	Burst          int     `json:"burst"`
	MaxRetries     int     `json:"max_retries"` // GET retries on transport errors and 5xx
}

// FeedConfig holds review list settings
type FeedConfig struct {
	PageSize int `json:"page_size"`
}

// LocalConfig holds local-mode settings
type LocalConfig struct {
	DBPath       string `json:"db_path,omitempty"`
	Username     string `json:"username"`
	Privileged   bool   `json:"privileged"`
	StatsDelayMs int    `json:"stats_delay_ms"` // simulated aggregation latency
}

// UIConfig holds UI preferences
type UIConfig struct {
	LogLevel       string `json:"log_level"`
	ConfirmDeletes bool   `json:"confirm_deletes"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:        "http://localhost:8000/api",
			TimeoutSeconds: 15,
			RatePerSecond:  10,
			Burst:          5,
			MaxRetries:     2,
		},
		Feed: FeedConfig{
			PageSize: 20,
		},
		Local: LocalConfig{
			Username:     "local",
			StatsDelayMs: 800,
		},
		UI: UIConfig{
			LogLevel:       "info",
			ConfirmDeletes: true,
		},
	}
}

// Dir returns the directory holding the config file
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".stationreviews")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(Dir(), "config.json")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads config from path. A missing file yields defaults filled
// from the environment; zero fields in a partial file take default values.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.AutoPopulateFromEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		logging.Warn("config: unreadable, using defaults", "path", path, "err", err)
		return DefaultConfig(), nil
	}
	cfg.fillDefaults()
	cfg.AutoPopulateFromEnv()
	return &cfg, nil
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.TimeoutSeconds <= 0 {
		c.API.TimeoutSeconds = d.API.TimeoutSeconds
	}
	if c.API.RatePerSecond <= 0 {
		c.API.RatePerSecond = d.API.RatePerSecond
	}
	if c.API.Burst <= 0 {
		c.API.Burst = d.API.Burst
	}
	if c.API.MaxRetries < 0 {
		c.API.MaxRetries = 0
	}
	if c.Feed.PageSize <= 0 {
		c.Feed.PageSize = d.Feed.PageSize
	}
	if c.Local.Username == "" {
		c.Local.Username = d.Local.Username
	}
	if c.UI.LogLevel == "" {
		c.UI.LogLevel = d.UI.LogLevel
	}
}

// SaveTo writes config to path
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600) // holds the access token
}

// Environment variables understood by AutoPopulateFromEnv and LoadEnvFile.
const (
	EnvAPIURL     = "STATIONREVIEWS_API_URL"
	EnvUsername   = "STATIONREVIEWS_USERNAME"
	EnvToken      = "STATIONREVIEWS_TOKEN"
	EnvDB         = "STATIONREVIEWS_DB"
	EnvPageSize   = "STATIONREVIEWS_PAGE_SIZE"
	EnvStatsDelay = "STATIONREVIEWS_STATS_DELAY_MS"
)

// AutoPopulateFromEnv fills in settings from environment variables
func (c *Config) AutoPopulateFromEnv() {
	c.apply(os.Getenv)
}

// LoadEnvFile applies settings from a dotenv file without touching the
// process environment.
func (c *Config) LoadEnvFile(path string) error {
	vars, err := godotenv.Read(path)
	if err != nil {
		return err
	}
	c.apply(func(k string) string { return vars[k] })
	return nil
}

func (c *Config) apply(get func(string) string) {
	if v := get(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
	if v := get(EnvUsername); v != "" {
		c.API.Username = v
	}
	if v := get(EnvToken); v != "" {
		c.API.AccessToken = v
	}
	if v := get(EnvDB); v != "" {
		c.Local.DBPath = v
	}
	if n, err := strconv.Atoi(get(EnvPageSize)); err == nil && n > 0 {
		c.Feed.PageSize = n
	}
	if n, err := strconv.Atoi(get(EnvStatsDelay)); err == nil && n >= 0 {
		c.Local.StatsDelayMs = n
	}
}

// DataPath returns the data directory, defaulting to Dir().
func (c *Config) DataPath() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return Dir()
}

// Timeout is the per-request transport timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// StatsDelay is the simulated stats latency in local mode
func (c *Config) StatsDelay() time.Duration {
	return time.Duration(c.Local.StatsDelayMs) * time.Millisecond
}
