package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PlaceholderAPIKey is used when no credential is configured.
const PlaceholderAPIKey = "YOUR_API_KEY"

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName        string `mapstructure:"app_name"`
	LogLevel       string `mapstructure:"log_level"`
	APIKey         string `mapstructure:"api_key"`
	Provider       string `mapstructure:"provider"`
	ProvidersFile  string `mapstructure:"providers_file"`
	PublishersFile string `mapstructure:"publishers_file"`
	UserID         string `mapstructure:"user_id"`
	InputFile      string `mapstructure:"input_file"`
	OutputFile     string `mapstructure:"output_file"`
	KeepInput      bool   `mapstructure:"keep_input"`
	MetricsAddr    string `mapstructure:"metrics_addr"`

	RequestTimeoutSeconds  int64         `mapstructure:"request_timeout"`
	DownloadTimeoutSeconds int64         `mapstructure:"download_timeout"`
	PollIntervalSeconds    int64         `mapstructure:"poll_interval"`
	MaxPollAttempts        int           `mapstructure:"max_poll_attempts"`
	RequestTimeout         time.Duration `mapstructure:"-"`
	DownloadTimeout        time.Duration `mapstructure:"-"`
	PollInterval           time.Duration `mapstructure:"-"`

	JournalType            string        `mapstructure:"journal_type"`
	JournalPath            string        `mapstructure:"journal_path"`
	JournalTTLSeconds      int64         `mapstructure:"journal_ttl_seconds"`
	JournalCleanupSeconds  int64         `mapstructure:"journal_cleanup_interval_seconds"`
	JournalTTL             time.Duration `mapstructure:"-"`
	JournalCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "bulkcheck")
	v.SetDefault("log_level", "info")
	v.SetDefault("api_key", PlaceholderAPIKey)
	v.SetDefault("provider", "x")
	v.SetDefault("providers_file", "")
	v.SetDefault("publishers_file", "")
	v.SetDefault("user_id", "")
	v.SetDefault("input_file", "input.txt")
	v.SetDefault("output_file", "twitter_results.xlsx")
	v.SetDefault("keep_input", false)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("request_timeout", 30)   // seconds
	v.SetDefault("download_timeout", 300) // seconds
	v.SetDefault("poll_interval", 5)      // seconds
	v.SetDefault("max_poll_attempts", 0)
	v.SetDefault("journal_type", "bbolt")
	v.SetDefault("journal_path", "./data/bulkcheck.db")
	v.SetDefault("journal_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("journal_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))

	v.AutomaticEnv()
	if err := v.BindEnv("api_key", "TWITTER_API_KEY", "API_KEY"); err != nil {
		return nil, fmt.Errorf("bind api_key env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.APIKey = strings.TrimSpace(c.APIKey)
	if c.APIKey == "" {
		c.APIKey = PlaceholderAPIKey
	}
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))

	if c.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid request_timeout (must be positive seconds)")
	}
	if c.DownloadTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid download_timeout (must be positive seconds)")
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("invalid poll_interval (must be positive seconds)")
	}
	if c.MaxPollAttempts < 0 {
		return fmt.Errorf("invalid max_poll_attempts (must be zero or positive)")
	}
	c.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second
	c.DownloadTimeout = time.Duration(c.DownloadTimeoutSeconds) * time.Second
	c.PollInterval = time.Duration(c.PollIntervalSeconds) * time.Second

	if c.JournalTTLSeconds <= 0 {
		return fmt.Errorf("invalid journal_ttl_seconds (must be positive seconds)")
	}
	if c.JournalCleanupSeconds <= 0 {
		return fmt.Errorf("invalid journal_cleanup_interval_seconds (must be positive seconds)")
	}
	c.JournalTTL = time.Duration(c.JournalTTLSeconds) * time.Second
	c.JournalCleanupInterval = time.Duration(c.JournalCleanupSeconds) * time.Second

	return nil
}

// UsingPlaceholderKey reports whether no real credential was supplied.
func (c *Config) UsingPlaceholderKey() bool {
	return c == nil || c.APIKey == PlaceholderAPIKey
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.APIKey != "" && c.APIKey != PlaceholderAPIKey {
		c.APIKey = "***"
	}
	return c
}
