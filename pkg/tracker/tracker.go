// Package tracker provides an embeddable build timing tracker that ingests
// CI logs, publishes per-commit timing records and serves the generated
// dashboard data.
package tracker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/lei/ci-timings/internal/api"
	"github.com/lei/ci-timings/internal/config"
	"github.com/lei/ci-timings/internal/gitlog"
	"github.com/lei/ci-timings/internal/logcache"
	"github.com/lei/ci-timings/internal/provider"
	"github.com/lei/ci-timings/internal/provider/appveyor"
	"github.com/lei/ci-timings/internal/provider/azure"
	"github.com/lei/ci-timings/internal/provider/travis"
	"github.com/lei/ci-timings/internal/publish"
	"github.com/lei/ci-timings/internal/service"
	"github.com/lei/ci-timings/internal/site"
	"github.com/lei/ci-timings/internal/store"
	"github.com/lei/ci-timings/pkg/logger"
)

// Tracker represents a build timing tracker instance that can be embedded
// in applications
type Tracker struct {
	config  *Config
	service *service.Service
	builder *site.Builder
	router  http.Handler
	server  *http.Server
	logger  *logger.Logger
}

// Config holds the configuration for the Tracker
type Config struct {
	// History selects the commits whose builds are tracked
	History HistoryConfig

	// Storage configures the object store and the local cache
	Storage StorageConfig

	// Ingest configures the per-commit ingestion run
	Ingest IngestConfig

	// Per-vendor connection settings
	Travis   TravisConfig
	AppVeyor AppVeyorConfig
	Azure    AzureConfig

	// Site configures dashboard data generation
	Site SiteConfig

	// Server configures the preview HTTP server
	Server ServerConfig

	// Auth configures preview server authentication
	Auth AuthConfig

	// Logging configures the logger
	Logging LoggingConfig
}

// HistoryConfig holds commit history settings
type HistoryConfig struct {
	Repo   string // path to a local git checkout
	Author string // merge bot whose commits are tracked
}

// StorageConfig holds object store and cache settings
type StorageConfig struct {
	Bucket   string
	Region   string
	CacheDir string
}

// IngestConfig holds ingestion run settings
type IngestConfig struct {
	Workers int
}

// TravisConfig holds Travis CI connection settings
type TravisConfig struct {
	URL      string
	Slug     string
	Branch   string
	Token    string
	PageSize int
}

// AppVeyorConfig holds AppVeyor connection settings
type AppVeyorConfig struct {
	URL      string
	Account  string
	Project  string
	Branch   string
	Token    string
	PageSize int
}

// AzureConfig holds Azure Pipelines connection settings
type AzureConfig struct {
	URL          string
	Organization string
	Project      string
	Branch       string
	Token        string
	PageSize     int
}

// SiteConfig holds site generation settings
type SiteConfig struct {
	Dir          string
	Window       int
	ExcludePhase string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	APIKeys []APIKey
}

// APIKey represents an API key for authentication
type APIKey struct {
	Name string
	Key  string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// New creates a new Tracker instance backed by an S3 object store
func New(ctx context.Context, cfg *Config) (*Tracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Storage.Bucket == "" || cfg.Storage.Region == "" {
		return nil, fmt.Errorf("storage bucket and region are required")
	}

	appLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	st, err := store.NewS3Store(ctx, cfg.Storage.Bucket, cfg.Storage.Region, appLogger)
	if err != nil {
		return nil, fmt.Errorf("initialize object store: %w", err)
	}

	return newWithStore(cfg, st, appLogger)
}

// NewWithStore creates a new Tracker instance on top of the given object
// store. Use this to embed the tracker without S3, for example with
// store.NewInMemoryStore in tests.
func NewWithStore(cfg *Config, st store.ObjectStore) (*Tracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	return newWithStore(cfg, st, logger.New(cfg.Logging.Level, cfg.Logging.Format))
}

func newWithStore(cfg *Config, st store.ObjectStore, appLogger *logger.Logger) (*Tracker, error) {
	cacheDir := cfg.Storage.CacheDir
	if cacheDir == "" {
		cacheDir = "cache"
	}
	siteDir := cfg.Site.Dir
	if siteDir == "" {
		siteDir = "site"
	}

	cache := logcache.New(cacheDir, appLogger)
	gate := publish.NewGate(st, cacheDir, appLogger)

	directories := []provider.Directory{
		travis.NewDirectory(&travis.Config{
			URL:      cfg.Travis.URL,
			Slug:     cfg.Travis.Slug,
			Branch:   cfg.Travis.Branch,
			Token:    cfg.Travis.Token,
			PageSize: cfg.Travis.PageSize,
		}, cache, appLogger),
		appveyor.NewDirectory(&appveyor.Config{
			URL:      cfg.AppVeyor.URL,
			Account:  cfg.AppVeyor.Account,
			Project:  cfg.AppVeyor.Project,
			Branch:   cfg.AppVeyor.Branch,
			Token:    cfg.AppVeyor.Token,
			PageSize: cfg.AppVeyor.PageSize,
		}, cache, appLogger),
		azure.NewDirectory(&azure.Config{
			URL:          cfg.Azure.URL,
			Organization: cfg.Azure.Organization,
			Project:      cfg.Azure.Project,
			Branch:       cfg.Azure.Branch,
			Token:        cfg.Azure.Token,
			PageSize:     cfg.Azure.PageSize,
		}, cache, appLogger),
	}

	svc := service.NewService(directories, gate, cfg.Ingest.Workers, appLogger)
	builder := site.NewBuilder(gate, siteDir, cfg.Site.Window, cfg.Site.ExcludePhase, appLogger)

	// Preview server
	handlers := api.NewHandlers(siteDir)

	configAPIKeys := make([]config.APIKey, len(cfg.Auth.APIKeys))
	for i, key := range cfg.Auth.APIKeys {
		configAPIKeys[i] = config.APIKey{
			Name: key.Name,
			Key:  key.Key,
		}
	}
	authMiddleware := api.NewAuthMiddleware(configAPIKeys)
	loggingMiddleware := api.NewLoggingMiddleware(appLogger)
	router := api.NewRouter(handlers, authMiddleware, loggingMiddleware)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Tracker{
		config:  cfg,
		service: svc,
		builder: builder,
		router:  router,
		server:  srv,
		logger:  appLogger,
	}, nil
}

// Ingest walks the tracked commits newest first and publishes a timing
// record for every commit that does not have one yet.
// Each call converges: once a run succeeds, the next one stops at the
// first commit it published.
func (t *Tracker) Ingest(ctx context.Context) error {
	commits, err := gitlog.Commits(ctx, t.config.History.Repo, t.config.History.Author)
	if err != nil {
		return fmt.Errorf("list commits: %w", err)
	}

	return t.service.Run(ctx, commits)
}

// BuildSite regenerates the dashboard data from the published records
func (t *Tracker) BuildSite(ctx context.Context) error {
	commits, err := gitlog.Commits(ctx, t.config.History.Repo, t.config.History.Author)
	if err != nil {
		return fmt.Errorf("list commits: %w", err)
	}

	return t.builder.Build(ctx, commits)
}

// Serve starts the preview HTTP server.
// This is a blocking call that will run until the context is canceled or
// an error occurs.
func (t *Tracker) Serve(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	// Start server in goroutine
	go func() {
		t.logger.Info("starting http server", "port", t.config.Server.Port)
		serverErrors <- t.server.ListenAndServe()
	}()

	// Wait for context cancellation or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case <-ctx.Done():
		t.logger.Info("shutdown signal received")

		// Graceful shutdown with 30s timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := t.server.Shutdown(shutdownCtx); err != nil {
			t.server.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		t.logger.Info("server stopped gracefully")
		return nil
	}
}

// Handler returns the http.Handler serving the generated dashboard data.
// Use this if you want to integrate the tracker into an existing HTTP server.
func (t *Tracker) Handler() http.Handler {
	return t.router
}

// LoadConfig reads a YAML configuration file, applies defaults and
// validates it
func LoadConfig(path string) (*Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	// Convert APIKeys from internal config format
	apiKeys := make([]APIKey, len(cfg.Auth.APIKeys))
	for i, key := range cfg.Auth.APIKeys {
		apiKeys[i] = APIKey{
			Name: key.Name,
			Key:  key.Key,
		}
	}

	return &Config{
		History: HistoryConfig{
			Repo:   cfg.History.Repo,
			Author: cfg.History.Author,
		},
		Storage: StorageConfig{
			Bucket:   cfg.Storage.Bucket,
			Region:   cfg.Storage.Region,
			CacheDir: cfg.Storage.CacheDir,
		},
		Ingest: IngestConfig{
			Workers: cfg.Ingest.Workers,
		},
		Travis: TravisConfig{
			URL:      cfg.Travis.URL,
			Slug:     cfg.Travis.Slug,
			Branch:   cfg.Travis.Branch,
			Token:    cfg.Travis.Token,
			PageSize: cfg.Travis.PageSize,
		},
		AppVeyor: AppVeyorConfig{
			URL:      cfg.AppVeyor.URL,
			Account:  cfg.AppVeyor.Account,
			Project:  cfg.AppVeyor.Project,
			Branch:   cfg.AppVeyor.Branch,
			Token:    cfg.AppVeyor.Token,
			PageSize: cfg.AppVeyor.PageSize,
		},
		Azure: AzureConfig{
			URL:          cfg.Azure.URL,
			Organization: cfg.Azure.Organization,
			Project:      cfg.Azure.Project,
			Branch:       cfg.Azure.Branch,
			Token:        cfg.Azure.Token,
			PageSize:     cfg.Azure.PageSize,
		},
		Site: SiteConfig{
			Dir:          cfg.Site.Dir,
			Window:       cfg.Site.Window,
			ExcludePhase: cfg.Site.ExcludePhase,
		},
		Server: ServerConfig{
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		Auth: AuthConfig{
			APIKeys: apiKeys,
		},
		Logging: LoggingConfig{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		},
	}, nil
}

// NewFromFile creates a Tracker instance from a YAML configuration file.
// This is a convenience function that mirrors the behavior of the
// standalone command.
func NewFromFile(ctx context.Context, path string) (*Tracker, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return New(ctx, cfg)
}
