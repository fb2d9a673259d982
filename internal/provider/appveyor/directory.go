// Package appveyor maps commits to AppVeyor builds. History is paged
// by passing the oldest already-seen build id as the continuation
// point of the next request.
package appveyor

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

// Config contains AppVeyor connection settings
type Config struct {
	URL      string // API base, e.g. https://ci.appveyor.com
	Account  string
	Project  string
	Branch   string
	Token    string
	PageSize int
}

// Directory implements provider.Directory for AppVeyor
type Directory struct {
	client *Client
	config *Config
	cache  *logcache.Cache
	logger *logger.Logger

	builds       map[string]*BuildRef
	startBuildID uint64
	exhausted    bool
}

// NewDirectory creates an AppVeyor build directory
func NewDirectory(cfg *Config, cache *logcache.Cache, log *logger.Logger) *Directory {
	return &Directory{
		client: NewClient(cfg.URL, cfg.Token, log),
		config: cfg,
		cache:  cache,
		logger: log,
		builds: make(map[string]*BuildRef),
	}
}

// BuildRef identifies one AppVeyor build
type BuildRef struct {
	CommitID string
	BuildID  uint64
	Version  string
}

func (r *BuildRef) Vendor() string {
	return "appveyor"
}

// JobRef identifies one job of an AppVeyor build
type JobRef struct {
	JobID   string
	BuildID uint64
	JobURL  string
}

func (r *JobRef) Vendor() string {
	return "appveyor"
}

func (r *JobRef) URL() string {
	return r.JobURL
}

// Name implements provider.Directory
func (d *Directory) Name() string {
	return "appveyor"
}

// Strict implements provider.Directory. AppVeyor serves logs for every
// build it still lists, so a failing job points at a real problem.
func (d *Directory) Strict() bool {
	return true
}

// Lookup implements provider.Directory
func (d *Directory) Lookup(ctx context.Context, commitID string) (provider.BuildRef, error) {
	for {
		if build, ok := d.builds[commitID]; ok {
			return build, nil
		}
		if d.exhausted {
			return nil, provider.ErrNotFound
		}
		if err := d.loadMore(ctx); err != nil {
			return nil, err
		}
	}
}

// loadMore fetches the next history page and indexes its builds. The
// continuation point advances to the last build of the page; an empty
// page means the listing has been walked to its end.
func (d *Directory) loadMore(ctx context.Context) error {
	builds, err := d.client.History(ctx, d.config.Account, d.config.Project, d.config.Branch,
		d.config.PageSize, d.startBuildID)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			return &provider.VendorError{
				Status:  http.StatusNotFound,
				Message: fmt.Sprintf("appveyor project %s/%s not found", d.config.Account, d.config.Project),
			}
		}
		return fmt.Errorf("list appveyor builds: %w", err)
	}

	if len(builds) == 0 {
		d.logger.Debug("provider: appveyor history exhausted",
			"known_builds", len(d.builds))
		d.exhausted = true
		return nil
	}

	d.startBuildID = builds[len(builds)-1].ID
	for _, build := range builds {
		if err := d.remember(build); err != nil {
			return err
		}
	}

	d.logger.Debug("provider: appveyor history page indexed",
		"start_build_id", d.startBuildID,
		"known_builds", len(d.builds))
	return nil
}

// remember indexes a build by its commit, rejecting ambiguous history
func (d *Directory) remember(build Build) error {
	sha := build.CommitID
	if _, ok := d.builds[sha]; ok {
		return fmt.Errorf("%w: appveyor build %d for %s", provider.ErrDuplicateBuild, build.ID, sha)
	}
	d.builds[sha] = &BuildRef{CommitID: sha, BuildID: build.ID, Version: build.Version}
	return nil
}

// Jobs implements provider.Directory
func (d *Directory) Jobs(ctx context.Context, build provider.BuildRef) ([]provider.JobRef, error) {
	ref, ok := build.(*BuildRef)
	if !ok {
		return nil, fmt.Errorf("invalid build ref type: expected appveyor.BuildRef")
	}

	jobs, err := d.client.BuildJobs(ctx, d.config.Account, d.config.Project, ref.Version)
	if err != nil {
		return nil, fmt.Errorf("list appveyor jobs for build %s: %w", ref.Version, err)
	}

	refs := make([]provider.JobRef, 0, len(jobs))
	for _, job := range jobs {
		refs = append(refs, &JobRef{
			JobID:   job.ID,
			BuildID: ref.BuildID,
			JobURL: fmt.Sprintf("https://ci.appveyor.com/project/%s/%s/builds/%d/job/%s",
				d.config.Account, d.config.Project, ref.BuildID, job.ID),
		})
	}

	d.logger.Debug("provider: appveyor jobs listed",
		"version", ref.Version,
		"count", len(refs))
	return refs, nil
}

// FetchLog implements provider.Directory
func (d *Directory) FetchLog(ctx context.Context, job provider.JobRef) (*models.RawLog, error) {
	ref, ok := job.(*JobRef)
	if !ok {
		return nil, fmt.Errorf("invalid job ref type: expected appveyor.JobRef")
	}

	path := fmt.Sprintf("logs/appveyor/%d-%s.gz", ref.BuildID, ref.JobID)
	content, err := d.cache.GetOrFetch(path, func() (string, error) {
		return d.client.JobLog(ctx, ref.JobID)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch appveyor log for job %s: %w", ref.JobID, err)
	}

	return &models.RawLog{
		JobURL:  ref.JobURL,
		Path:    path,
		Content: content,
	}, nil
}
