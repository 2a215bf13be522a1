package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the feed archiver
type Config struct {
	// Instagram account and session settings
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// Feed collection settings
	Feed FeedConfig `yaml:"feed" json:"feed"`

	// Rate limiting and politeness settings
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Media download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// InstagramConfig holds account and session persistence settings
type InstagramConfig struct {
	Username    string `yaml:"username" json:"username"`
	SessionFile string `yaml:"session_file" json:"session_file"`
}

// FeedConfig holds pagination and enrichment settings
type FeedConfig struct {
	TargetCount   int  `yaml:"target_count" json:"target_count"`
	PageBudget    int  `yaml:"page_budget" json:"page_budget"`
	FetchComments bool `yaml:"fetch_comments" json:"fetch_comments"`
	CommentLimit  int  `yaml:"comment_limit" json:"comment_limit"`
	DownloadMedia bool `yaml:"download_media" json:"download_media"`
	SkipSponsored bool `yaml:"skip_sponsored" json:"skip_sponsored"`
	SkipArchived  bool `yaml:"skip_archived" json:"skip_archived"`
	SortByTakenAt bool `yaml:"sort_by_taken_at" json:"sort_by_taken_at"`
}

// RateLimitConfig holds request budgeting and politeness settings
type RateLimitConfig struct {
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	PageDelayMin      time.Duration `yaml:"page_delay_min" json:"page_delay_min"`
	PageDelayMax      time.Duration `yaml:"page_delay_max" json:"page_delay_max"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
}

// OutputConfig holds archive output settings
type OutputConfig struct {
	BaseDirectory  string `yaml:"base_directory" json:"base_directory"`
	MediaDirectory string `yaml:"media_directory" json:"media_directory"`
}

// DownloadConfig holds media download settings
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			SessionFile: defaultSessionFile(),
		},
		Feed: FeedConfig{
			TargetCount:   20,
			PageBudget:    5,
			CommentLimit:  50,
			SkipArchived:  true,
			FetchComments: false,
			DownloadMedia: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 60,
			PageDelayMin:      1 * time.Second,
			PageDelayMax:      3 * time.Second,
			MaxRetries:        3,
		},
		Output: OutputConfig{
			BaseDirectory:  "./archive",
			MediaDirectory: "downloads",
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 3,
			DownloadTimeout:     30 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "session.json"
	}
	return filepath.Join(home, ".config", "igarchive", "session.json")
}

// LoadFromEnv overrides configuration from IGARCHIVE_* environment variables
func (c *Config) LoadFromEnv() {
	if username := os.Getenv("IGARCHIVE_USERNAME"); username != "" {
		c.Instagram.Username = username
	}
	if sessionFile := os.Getenv("IGARCHIVE_SESSION_FILE"); sessionFile != "" {
		c.Instagram.SessionFile = sessionFile
	}
	if count := os.Getenv("IGARCHIVE_TARGET_COUNT"); count != "" {
		if val, err := strconv.Atoi(count); err == nil && val > 0 {
			c.Feed.TargetCount = val
		}
	}
	if budget := os.Getenv("IGARCHIVE_PAGE_BUDGET"); budget != "" {
		if val, err := strconv.Atoi(budget); err == nil && val > 0 {
			c.Feed.PageBudget = val
		}
	}
	if rpm := os.Getenv("IGARCHIVE_REQUESTS_PER_MINUTE"); rpm != "" {
		if val, err := strconv.Atoi(rpm); err == nil && val > 0 {
			c.RateLimit.RequestsPerMinute = val
		}
	}
	if outputDir := os.Getenv("IGARCHIVE_OUTPUT_DIR"); outputDir != "" {
		c.Output.BaseDirectory = outputDir
	}
	if logLevel := os.Getenv("IGARCHIVE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// LoadFromFile loads configuration from a YAML file. An empty path means
// "search the standard locations"; finding nothing is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func findConfigFile() string {
	locations := []string{
		".igarchive.yaml",
		".igarchive.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igarchive", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".igarchive.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	var errs []error

	if c.Feed.TargetCount <= 0 {
		errs = append(errs, errors.New("target post count must be positive"))
	}
	if c.Feed.PageBudget <= 0 {
		errs = append(errs, errors.New("page budget must be positive"))
	}
	if c.Feed.CommentLimit < 0 {
		errs = append(errs, errors.New("comment limit cannot be negative"))
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("requests per minute must be positive"))
	}
	if c.RateLimit.PageDelayMin < 0 || c.RateLimit.PageDelayMax < c.RateLimit.PageDelayMin {
		errs = append(errs, errors.New("page delay range must satisfy 0 <= min <= max"))
	}
	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Download.ConcurrentDownloads <= 0 || c.Download.ConcurrentDownloads > 10 {
		errs = append(errs, errors.New("concurrent downloads must be between 1 and 10"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save writes the configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load builds the configuration from all sources.
// Precedence: flags (merged by the caller) > environment > .env > file > defaults.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".igarchive.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	cfg.LoadFromEnv()

	return cfg, nil
}
