package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level roleval configuration. Credentials come from the
// environment only, never from the YAML file.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Scraper ScraperConfig `yaml:"scraper"`
	Sheets  SheetsConfig  `yaml:"sheets"`

	CachePath  string `yaml:"cache_path"`
	ExportsDir string `yaml:"exports_dir"`
	ChunkSize  int    `yaml:"chunk_size"`

	LoginEmail    string `yaml:"-"`
	LoginPassword string `yaml:"-"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	Headless bool   `yaml:"headless"`
	Remote   string `yaml:"remote"`
}

// ScraperConfig tunes the search flow.
type ScraperConfig struct {
	BaseURL     string        `yaml:"base_url"`
	StreetAPI   string        `yaml:"street_api"`
	MaxAttempts int           `yaml:"max_attempts"`
	DelayMin    time.Duration `yaml:"delay_min"`
	DelayMax    time.Duration `yaml:"delay_max"`
	NoDelay     bool          `yaml:"no_delay"`
}

// SheetsConfig points at the spreadsheet tab to process instead of a CSV.
type SheetsConfig struct {
	Spreadsheet     string `yaml:"spreadsheet"`
	Tab             string `yaml:"tab"`
	FromRow         int    `yaml:"from_row"`
	CredentialsFile string `yaml:"credentials_file"`
}

// loadConfig reads the optional YAML file, then overlays environment
// credentials. A .env file in the working directory is honored when
// present.
func loadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.LoginEmail = os.Getenv("MONTREAL_EMAIL")
	cfg.LoginPassword = os.Getenv("MONTREAL_PASSWORD")
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.CachePath == "" {
		c.CachePath = "data/cache.db"
	}
	if c.ExportsDir == "" {
		c.ExportsDir = "exports"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 25
	}
	if c.Scraper.MaxAttempts <= 0 {
		c.Scraper.MaxAttempts = 3
	}
	if c.Scraper.DelayMin <= 0 {
		c.Scraper.DelayMin = 1500 * time.Millisecond
	}
	if c.Scraper.DelayMax <= c.Scraper.DelayMin {
		c.Scraper.DelayMax = 3 * time.Second
	}
	if c.Sheets.FromRow <= 0 {
		c.Sheets.FromRow = 2
	}
}
