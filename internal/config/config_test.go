package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "history:\n  repo: /src/rust\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.History.Author != "bors" {
		t.Errorf("History.Author = %q, want bors", cfg.History.Author)
	}
	if cfg.Ingest.Workers != 8 {
		t.Errorf("Ingest.Workers = %d, want 8", cfg.Ingest.Workers)
	}
	if cfg.Travis.URL != "https://api.travis-ci.com" {
		t.Errorf("Travis.URL = %q", cfg.Travis.URL)
	}
	if cfg.Travis.Branch != "auto" || cfg.AppVeyor.Branch != "auto" || cfg.Azure.Branch != "auto" {
		t.Errorf("branches = %q %q %q, want auto for all",
			cfg.Travis.Branch, cfg.AppVeyor.Branch, cfg.Azure.Branch)
	}
	if cfg.Travis.PageSize != 25 || cfg.AppVeyor.PageSize != 100 || cfg.Azure.PageSize != 200 {
		t.Errorf("page sizes = %d %d %d, want 25 100 200",
			cfg.Travis.PageSize, cfg.AppVeyor.PageSize, cfg.Azure.PageSize)
	}
	if cfg.Site.Window != 100 {
		t.Errorf("Site.Window = %d, want 100", cfg.Site.Window)
	}
	if cfg.Site.ExcludePhase != "Distcheck" {
		t.Errorf("Site.ExcludePhase = %q, want Distcheck", cfg.Site.ExcludePhase)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %q/%q, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	content := `
history:
  repo: /src/rust
  author: buildbot
ingest:
  workers: 2
site:
  window: 10
  exclude_phase: Audit
travis:
  page_size: 5
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.History.Author != "buildbot" {
		t.Errorf("History.Author = %q, want buildbot", cfg.History.Author)
	}
	if cfg.Ingest.Workers != 2 {
		t.Errorf("Ingest.Workers = %d, want 2", cfg.Ingest.Workers)
	}
	if cfg.Site.Window != 10 || cfg.Site.ExcludePhase != "Audit" {
		t.Errorf("site = %d/%q, want 10/Audit", cfg.Site.Window, cfg.Site.ExcludePhase)
	}
	if cfg.Travis.PageSize != 5 {
		t.Errorf("Travis.PageSize = %d, want 5", cfg.Travis.PageSize)
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_TRAVIS_TOKEN", "secret-token")

	content := `
travis:
  token: ${TEST_TRAVIS_TOKEN}
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Travis.Token != "secret-token" {
		t.Errorf("Travis.Token = %q, want secret-token", cfg.Travis.Token)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "history: [unclosed")); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func validConfig() *Config {
	return &Config{
		History: HistoryConfig{Repo: "/src/rust"},
		Storage: StorageConfig{Bucket: "timings", Region: "us-west-1"},
		Travis: TravisConfig{
			Slug:  "rust-lang/rust",
			Token: "t",
		},
		AppVeyor: AppVeyorConfig{
			Account: "rust-lang",
			Project: "rust",
			Token:   "t",
		},
		Azure: AzureConfig{
			Organization: "rust-lang",
			Project:      "rust",
			Token:        "t",
		},
	}
}

func TestValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate on complete config: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing repo", func(c *Config) { c.History.Repo = "" }, "history.repo"},
		{"missing bucket", func(c *Config) { c.Storage.Bucket = "" }, "storage.bucket"},
		{"missing region", func(c *Config) { c.Storage.Region = "" }, "storage.region"},
		{"missing travis token", func(c *Config) { c.Travis.Token = "" }, "travis.token"},
		{"missing appveyor account", func(c *Config) { c.AppVeyor.Account = "" }, "appveyor.account"},
		{"missing azure organization", func(c *Config) { c.Azure.Organization = "" }, "azure.organization"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not name %q", err, tt.want)
			}
		})
	}
}
