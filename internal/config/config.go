package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the persistent application configuration
type Config struct {
	Database  DatabaseConfig  `json:"database"`
	Detector  DetectorConfig  `json:"detector"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Feeds     []FeedConfig    `json:"feeds"`
	Tables    TablesConfig    `json:"tables"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `json:"path"` // empty = ~/.narrated/narrated.db
}

// DetectorConfig holds the clustering thresholds.
type DetectorConfig struct {
	MinArticles       int `json:"min_articles"`
	TimeWindowHours   int `json:"time_window_hours"`
	MinSharedEntities int `json:"min_shared_entities"`
	MaxKeywords       int `json:"max_keywords"`
}

// SchedulerConfig defines the batch cadences.
type SchedulerConfig struct {
	DetectIntervalMinutes  int `json:"detect_interval_minutes"`
	MetricsIntervalMinutes int `json:"metrics_interval_minutes"`
	RetentionDays          int `json:"retention_days"`
	FeedMinIntervalMinutes int `json:"feed_min_interval_minutes"`
}

// FeedConfig is one RSS/Atom item source.
type FeedConfig struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// TablesConfig points at optional rule-table overrides. Empty paths use the
// compiled-in rosters and lexicon.
type TablesConfig struct {
	EntitiesFile string `json:"entities_file"`
	LexiconFile  string `json:"lexicon_file"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Detector: DetectorConfig{
			MinArticles:       2,
			TimeWindowHours:   24,
			MinSharedEntities: 1,
			MaxKeywords:       5,
		},
		Scheduler: SchedulerConfig{
			DetectIntervalMinutes:  15,
			MetricsIntervalMinutes: 30,
			RetentionDays:          30,
			FeedMinIntervalMinutes: 5,
		},
		Feeds: []FeedConfig{
			{Name: "Hacker News", URL: "https://news.ycombinator.com/rss"},
			{Name: "CNBC Markets", URL: "https://www.cnbc.com/id/20910258/device/rss/rss.html"},
		},
	}
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".narrated", "config.json")
}

// DatabasePath resolves the configured database path, defaulting next to
// the config file.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".narrated", "narrated.db")
}

// Load reads config from disk, or returns defaults
func Load() (*Config, error) {
	path := ConfigPath()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), nil
	}
	cfg.applyEnv()

	return &cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	path := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// applyEnv lets a deployment override file locations without editing the
// config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("NARRATED_DB"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("NARRATED_ENTITY_TABLES"); v != "" {
		c.Tables.EntitiesFile = v
	}
	if v := os.Getenv("NARRATED_LEXICON"); v != "" {
		c.Tables.LexiconFile = v
	}
}
