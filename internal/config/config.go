package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the tracker configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	History  HistoryConfig  `yaml:"history"`
	Storage  StorageConfig  `yaml:"storage"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Travis   TravisConfig   `yaml:"travis"`
	AppVeyor AppVeyorConfig `yaml:"appveyor"`
	Azure    AzureConfig    `yaml:"azure"`
	Site     SiteConfig     `yaml:"site"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuthConfig contains authentication settings
type AuthConfig struct {
	APIKeys []APIKey `yaml:"api_keys"`
}

// APIKey represents an API key for authentication
type APIKey struct {
	Name string `yaml:"name"`
	Key  string `yaml:"key"`
}

// HistoryConfig contains commit history settings
type HistoryConfig struct {
	Repo   string `yaml:"repo"`   // path to a local git checkout
	Author string `yaml:"author"` // merge bot whose commits are tracked
}

// StorageConfig contains object store and cache settings
type StorageConfig struct {
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	CacheDir string `yaml:"cache_dir"`
}

// IngestConfig contains ingestion run settings
type IngestConfig struct {
	Workers int `yaml:"workers"` // per-commit log fetch concurrency
}

// TravisConfig contains Travis CI connection settings
type TravisConfig struct {
	URL      string `yaml:"url"`
	Slug     string `yaml:"slug"`
	Branch   string `yaml:"branch"`
	Token    string `yaml:"token"`
	PageSize int    `yaml:"page_size"`
}

// AppVeyorConfig contains AppVeyor connection settings
type AppVeyorConfig struct {
	URL      string `yaml:"url"`
	Account  string `yaml:"account"`
	Project  string `yaml:"project"`
	Branch   string `yaml:"branch"`
	Token    string `yaml:"token"`
	PageSize int    `yaml:"page_size"`
}

// AzureConfig contains Azure Pipelines connection settings
type AzureConfig struct {
	URL          string `yaml:"url"`
	Organization string `yaml:"organization"`
	Project      string `yaml:"project"`
	Branch       string `yaml:"branch"`
	Token        string `yaml:"token"`
	PageSize     int    `yaml:"page_size"`
}

// SiteConfig contains site generation settings
type SiteConfig struct {
	Dir          string `yaml:"dir"`
	Window       int    `yaml:"window"`
	ExcludePhase string `yaml:"exclude_phase"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables in the config
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.History.Author == "" {
		cfg.History.Author = "bors"
	}
	if cfg.Storage.CacheDir == "" {
		cfg.Storage.CacheDir = "cache"
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 8
	}
	if cfg.Travis.URL == "" {
		cfg.Travis.URL = "https://api.travis-ci.com"
	}
	if cfg.Travis.Branch == "" {
		cfg.Travis.Branch = "auto"
	}
	if cfg.Travis.PageSize == 0 {
		cfg.Travis.PageSize = 25
	}
	if cfg.AppVeyor.URL == "" {
		cfg.AppVeyor.URL = "https://ci.appveyor.com"
	}
	if cfg.AppVeyor.Branch == "" {
		cfg.AppVeyor.Branch = "auto"
	}
	if cfg.AppVeyor.PageSize == 0 {
		cfg.AppVeyor.PageSize = 100
	}
	if cfg.Azure.URL == "" {
		cfg.Azure.URL = "https://dev.azure.com"
	}
	if cfg.Azure.Branch == "" {
		cfg.Azure.Branch = "auto"
	}
	if cfg.Azure.PageSize == 0 {
		cfg.Azure.PageSize = 200
	}
	if cfg.Site.Dir == "" {
		cfg.Site.Dir = "site"
	}
	if cfg.Site.Window == 0 {
		cfg.Site.Window = 100
	}
	if cfg.Site.ExcludePhase == "" {
		cfg.Site.ExcludePhase = "Distcheck"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	return &cfg, nil
}

// Validate checks that every setting without a usable default is present.
// Missing credentials surface at startup instead of one vendor call at a time.
func (c *Config) Validate() error {
	if c.History.Repo == "" {
		return fmt.Errorf("history.repo is required")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required")
	}
	if c.Storage.Region == "" {
		return fmt.Errorf("storage.region is required")
	}
	if c.Travis.Slug == "" {
		return fmt.Errorf("travis.slug is required")
	}
	if c.Travis.Token == "" {
		return fmt.Errorf("travis.token is required")
	}
	if c.AppVeyor.Account == "" {
		return fmt.Errorf("appveyor.account is required")
	}
	if c.AppVeyor.Project == "" {
		return fmt.Errorf("appveyor.project is required")
	}
	if c.AppVeyor.Token == "" {
		return fmt.Errorf("appveyor.token is required")
	}
	if c.Azure.Organization == "" {
		return fmt.Errorf("azure.organization is required")
	}
	if c.Azure.Project == "" {
		return fmt.Errorf("azure.project is required")
	}
	if c.Azure.Token == "" {
		return fmt.Errorf("azure.token is required")
	}
	return nil
}
