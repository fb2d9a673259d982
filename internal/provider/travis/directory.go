// Package travis maps commits to Travis CI builds. Travis pages
// history with a plain offset, so the directory can keep loading pages
// until the vendor's history runs out.
package travis

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

// Config contains Travis connection settings
type Config struct {
	URL      string // API base, e.g. https://api.travis-ci.com
	Slug     string // repository slug, e.g. rust-lang/rust
	Branch   string // branch whose builds are tracked
	Token    string
	PageSize int
}

// Directory implements provider.Directory for Travis CI
type Directory struct {
	client *Client
	config *Config
	cache  *logcache.Cache
	logger *logger.Logger

	builds    map[string]*BuildRef
	offset    int
	exhausted bool
}

// NewDirectory creates a Travis build directory
func NewDirectory(cfg *Config, cache *logcache.Cache, log *logger.Logger) *Directory {
	return &Directory{
		client: NewClient(cfg.URL, cfg.Token, log),
		config: cfg,
		cache:  cache,
		logger: log,
		builds: make(map[string]*BuildRef),
	}
}

// BuildRef identifies one Travis build
type BuildRef struct {
	CommitID string
	BuildID  uint64
}

func (r *BuildRef) Vendor() string {
	return "travis"
}

// JobRef identifies one job of a Travis build
type JobRef struct {
	JobID  uint64
	JobURL string
}

func (r *JobRef) Vendor() string {
	return "travis"
}

func (r *JobRef) URL() string {
	return r.JobURL
}

// Name implements provider.Directory
func (d *Directory) Name() string {
	return "travis"
}

// Strict implements provider.Directory. Travis keeps logs for as long
// as the builds themselves, so a failing job points at a real problem.
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

// loadMore fetches the next history page and indexes its builds.
// An empty page means the listing has been walked to its end.
func (d *Directory) loadMore(ctx context.Context) error {
	builds, err := d.client.ListBuilds(ctx, d.config.Slug, d.config.Branch, d.config.PageSize, d.offset)
	if err != nil {
		if errors.Is(err, provider.ErrNotFound) {
			// A 404 on the listing endpoint means the slug or branch is
			// wrong, not that history ran out.
			return &provider.VendorError{
				Status:  http.StatusNotFound,
				Message: fmt.Sprintf("travis repository %s not found", d.config.Slug),
			}
		}
		return fmt.Errorf("list travis builds: %w", err)
	}

	if len(builds) == 0 {
		d.logger.Debug("provider: travis history exhausted",
			"offset", d.offset,
			"known_builds", len(d.builds))
		d.exhausted = true
		return nil
	}

	d.offset += len(builds)
	for _, build := range builds {
		if err := d.remember(build); err != nil {
			return err
		}
	}

	d.logger.Debug("provider: travis history page indexed",
		"offset", d.offset,
		"known_builds", len(d.builds))
	return nil
}

// remember indexes a build by its commit. Two builds for one commit
// would make lookups ambiguous, so the second is rejected.
func (d *Directory) remember(build Build) error {
	sha := build.Commit.SHA
	if _, ok := d.builds[sha]; ok {
		return fmt.Errorf("%w: travis build %d for %s", provider.ErrDuplicateBuild, build.ID, sha)
	}
	d.builds[sha] = &BuildRef{CommitID: sha, BuildID: build.ID}
	return nil
}

// Jobs implements provider.Directory
func (d *Directory) Jobs(ctx context.Context, build provider.BuildRef) ([]provider.JobRef, error) {
	ref, ok := build.(*BuildRef)
	if !ok {
		return nil, fmt.Errorf("invalid build ref type: expected travis.BuildRef")
	}

	jobs, err := d.client.ListJobs(ctx, ref.BuildID)
	if err != nil {
		return nil, fmt.Errorf("list travis jobs for build %d: %w", ref.BuildID, err)
	}

	refs := make([]provider.JobRef, 0, len(jobs))
	for _, job := range jobs {
		refs = append(refs, &JobRef{
			JobID:  job.ID,
			JobURL: fmt.Sprintf("https://travis-ci.com/%s/jobs/%d", d.config.Slug, job.ID),
		})
	}

	d.logger.Debug("provider: travis jobs listed",
		"build_id", ref.BuildID,
		"count", len(refs))
	return refs, nil
}

// FetchLog implements provider.Directory
func (d *Directory) FetchLog(ctx context.Context, job provider.JobRef) (*models.RawLog, error) {
	ref, ok := job.(*JobRef)
	if !ok {
		return nil, fmt.Errorf("invalid job ref type: expected travis.JobRef")
	}

	path := fmt.Sprintf("logs/travis/%d.gz", ref.JobID)
	content, err := d.cache.GetOrFetch(path, func() (string, error) {
		return d.client.JobLog(ctx, ref.JobID)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch travis log for job %d: %w", ref.JobID, err)
	}

	return &models.RawLog{
		JobURL:  ref.JobURL,
		Path:    path,
		Content: content,
	}, nil
}
