// Package azure maps commits to Azure Pipelines builds. The build
// listing offers no continuation point that survives concurrent
// inserts, so the directory loads a single generous page and answers
// every lookup from it.
package azure

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lei/ci-timings/internal/logcache"
	"github.com/lei/ci-timings/internal/models"
	"github.com/lei/ci-timings/internal/provider"
	"github.com/lei/ci-timings/pkg/logger"
)

// Config contains Azure DevOps connection settings
type Config struct {
	URL          string // API base, e.g. https://dev.azure.com
	Organization string
	Project      string
	Branch       string
	Token        string // personal access token
	PageSize     int
}

// Directory implements provider.Directory for Azure Pipelines
type Directory struct {
	client *Client
	config *Config
	cache  *logcache.Cache
	logger *logger.Logger

	builds map[string]*BuildRef
	loaded bool
}

// NewDirectory creates an Azure Pipelines build directory
func NewDirectory(cfg *Config, cache *logcache.Cache, log *logger.Logger) *Directory {
	return &Directory{
		client: NewClient(cfg.URL, cfg.Token, log),
		config: cfg,
		cache:  cache,
		logger: log,
		builds: make(map[string]*BuildRef),
	}
}

// BuildRef identifies one Azure Pipelines build
type BuildRef struct {
	CommitID string
	BuildID  uint64
}

func (r *BuildRef) Vendor() string {
	return "azure"
}

// JobRef identifies one job of an Azure Pipelines build
type JobRef struct {
	BuildID uint64
	LogID   int
	JobURL  string
}

func (r *JobRef) Vendor() string {
	return "azure"
}

func (r *JobRef) URL() string {
	return r.JobURL
}

// Name implements provider.Directory
func (d *Directory) Name() string {
	return "azure"
}

// Strict implements provider.Directory. Azure expires logs while the
// builds are still listed, so jobs with unusable logs are dropped
// rather than failing the commit.
func (d *Directory) Strict() bool {
	return false
}

// Lookup implements provider.Directory. Commits beyond the single
// loaded page are reported as unknown.
func (d *Directory) Lookup(ctx context.Context, commitID string) (provider.BuildRef, error) {
	for {
		if build, ok := d.builds[commitID]; ok {
			return build, nil
		}
		if d.loaded {
			return nil, provider.ErrNotFound
		}
		if err := d.loadMore(ctx); err != nil {
			return nil, err
		}
	}
}

// loadMore fetches the one and only history page. Asking for a second
// page would silently re-read the first, so that is refused outright.
func (d *Directory) loadMore(ctx context.Context) error {
	if d.loaded {
		return fmt.Errorf("%w: azure", provider.ErrPaginationResume)
	}

	builds, err := d.client.ListBuilds(ctx, d.config.Organization, d.config.Project,
		d.config.Branch, d.config.PageSize)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return &provider.VendorError{
				Status:  http.StatusNotFound,
				Message: fmt.Sprintf("azure project %s/%s not found", d.config.Organization, d.config.Project),
			}
		}
		return fmt.Errorf("list azure builds: %w", err)
	}

	d.loaded = true
	for _, build := range builds {
		if err := d.remember(build); err != nil {
			return err
		}
	}

	d.logger.Debug("provider: azure history loaded",
		"known_builds", len(d.builds))
	return nil
}

// remember indexes a build by its commit, rejecting ambiguous history
func (d *Directory) remember(build Build) error {
	sha := build.SourceVersion
	if _, ok := d.builds[sha]; ok {
		return fmt.Errorf("%w: azure build %d for %s", provider.ErrDuplicateBuild, build.ID, sha)
	}
	d.builds[sha] = &BuildRef{CommitID: sha, BuildID: build.ID}
	return nil
}

// Jobs implements provider.Directory. Jobs are the timeline records of
// type "Job"; records that kept no log are of no use here and are
// skipped.
func (d *Directory) Jobs(ctx context.Context, build provider.BuildRef) ([]provider.JobRef, error) {
	ref, ok := build.(*BuildRef)
	if !ok {
		return nil, fmt.Errorf("invalid build ref type: expected azure.BuildRef")
	}

	records, err := d.client.Timeline(ctx, d.config.Organization, d.config.Project, ref.BuildID)
	if err != nil {
		return nil, fmt.Errorf("fetch azure timeline for build %d: %w", ref.BuildID, err)
	}

	var refs []provider.JobRef
	for _, record := range records {
		if record.Type != "Job" || record.Log == nil {
			continue
		}
		refs = append(refs, &JobRef{
			BuildID: ref.BuildID,
			LogID:   record.Log.ID,
			JobURL: fmt.Sprintf("https://dev.azure.com/%s/%s/_build/results?buildId=%d&view=logs&j=%s",
				d.config.Organization, d.config.Project, ref.BuildID, record.ID),
		})
	}

	d.logger.Debug("provider: azure jobs listed",
		"build_id", ref.BuildID,
		"records", len(records),
		"count", len(refs))
	return refs, nil
}

// FetchLog implements provider.Directory
func (d *Directory) FetchLog(ctx context.Context, job provider.JobRef) (*models.RawLog, error) {
	ref, ok := job.(*JobRef)
	if !ok {
		return nil, fmt.Errorf("invalid job ref type: expected azure.JobRef")
	}

	path := fmt.Sprintf("logs/azure/%d-%d.gz", ref.BuildID, ref.LogID)
	content, err := d.cache.GetOrFetch(path, func() (string, error) {
		return d.client.Log(ctx, d.config.Organization, d.config.Project, ref.BuildID, ref.LogID)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch azure log %d for build %d: %w", ref.LogID, ref.BuildID, err)
	}

	return &models.RawLog{
		JobURL:  ref.JobURL,
		Path:    path,
		Content: content,
	}, nil
}
