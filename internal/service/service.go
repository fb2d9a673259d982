package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/lei/ci-timings/internal/logcache"
	"github.com/lei/ci-timings/internal/logscan"
	"github.com/lei/ci-timings/internal/models"
	"github.com/lei/ci-timings/internal/provider"
	"github.com/lei/ci-timings/internal/publish"
	"github.com/lei/ci-timings/pkg/logger"
)

const defaultWorkers = 8

// Service walks the tracked branch newest-first and publishes a timing
// record for every commit that has none yet.
type Service struct {
	directories []provider.Directory
	gate        *publish.Gate
	workers     int
	logger      *logger.Logger
}

// NewService creates a new service instance
func NewService(directories []provider.Directory, gate *publish.Gate, workers int, log *logger.Logger) *Service {
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Service{
		directories: directories,
		gate:        gate,
		workers:     workers,
		logger:      log,
	}
}

// Run processes commits in the given order until it reaches one whose
// record is already published. Everything past that point was handled
// by an earlier run: commits publish strictly newest-first, so the
// first published commit proves the rest of the walk is done.
func (s *Service) Run(ctx context.Context, commits []models.GitCommit) error {
	s.logger.Info("service: starting run",
		"commits", len(commits),
		"vendors", len(s.directories))

	for i, commit := range commits {
		published, err := s.gate.AlreadyPublished(ctx, commit.SHA)
		if err != nil {
			return err
		}
		if published {
			s.logger.Info("service: reached published commit, stopping",
				"sha", commit.SHA,
				"processed", i)
			return nil
		}

		if err := s.processCommit(ctx, commit.SHA); err != nil {
			return fmt.Errorf("process commit %s: %w", commit.SHA, err)
		}
	}

	s.logger.Info("service: walked full history", "processed", len(commits))
	return nil
}

// processCommit publishes one commit's record. A record mirrored by an
// interrupted earlier run is re-uploaded as-is, so the stored bytes
// never depend on which run got them there.
func (s *Service) processCommit(ctx context.Context, sha string) error {
	if compressed, ok := s.gate.CachedRecord(sha); ok {
		s.logger.Info("service: republishing mirrored record", "sha", sha)
		return s.gate.Upload(ctx, sha, compressed)
	}

	commit, err := s.buildCommit(ctx, sha)
	if err != nil {
		return err
	}

	return s.gate.Publish(ctx, sha, commit)
}

// jobSource pairs a job with the directory that can fetch its log
type jobSource struct {
	dir provider.Directory
	ref provider.JobRef
}

// jobResult is the outcome of scanning one job's log
type jobResult struct {
	src  jobSource
	name string
	job  models.Job
	err  error
}

// buildCommit assembles the timing record for one commit from every
// vendor that built it
func (s *Service) buildCommit(ctx context.Context, sha string) (*models.Commit, error) {
	var sources []jobSource
	for _, dir := range s.directories {
		build, err := dir.Lookup(ctx, sha)
		if errors.Is(err, provider.ErrNotFound) {
			s.logger.Debug("service: commit not built on vendor",
				"vendor", dir.Name(),
				"sha", sha)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve %s build: %w", dir.Name(), err)
		}

		jobs, err := dir.Jobs(ctx, build)
		if err != nil {
			return nil, fmt.Errorf("list %s jobs: %w", dir.Name(), err)
		}
		for _, job := range jobs {
			sources = append(sources, jobSource{dir: dir, ref: job})
		}
	}

	s.logger.Debug("service: collecting job logs",
		"sha", sha,
		"jobs", len(sources))

	commit := models.NewCommit()
	var dropped error
	for _, result := range s.collectJobs(ctx, sources) {
		if result.err != nil {
			err := fmt.Errorf("job %s: %w", result.src.ref.URL(), result.err)
			// A cache that cannot be written dooms every later run to
			// refetch, so it always stops the walk. Otherwise the
			// vendor's strictness decides.
			if errors.Is(result.err, logcache.ErrWrite) || result.src.dir.Strict() {
				return nil, err
			}
			dropped = multierr.Append(dropped, err)
			continue
		}
		// Two vendors can disagree about who ran a name; the record
		// keeps whichever scanned last, like the jobs are keyed.
		commit.Jobs[result.name] = result.job
	}

	if dropped != nil {
		s.logger.Warn("service: dropped jobs with unusable logs",
			"sha", sha,
			"count", len(multierr.Errors(dropped)),
			"error", dropped)
	}

	return commit, nil
}

// collectJobs fetches and scans job logs on a bounded worker pool.
// Results land in their source's slot, so the output order matches the
// input regardless of scheduling.
func (s *Service) collectJobs(ctx context.Context, sources []jobSource) []jobResult {
	results := make([]jobResult, len(sources))

	type workItem struct {
		idx int
		src jobSource
	}
	work := make(chan workItem, len(sources))

	workers := s.workers
	if workers > len(sources) {
		workers = len(sources)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				if ctx.Err() != nil {
					results[item.idx] = jobResult{src: item.src, err: ctx.Err()}
					continue
				}
				results[item.idx] = s.processJob(ctx, item.src)
			}
		}()
	}

	for i, src := range sources {
		work <- workItem{idx: i, src: src}
	}
	close(work)
	wg.Wait()

	return results
}

// processJob turns one job's log into its record entry
func (s *Service) processJob(ctx context.Context, src jobSource) jobResult {
	result := jobResult{src: src}

	raw, err := src.dir.FetchLog(ctx, src.ref)
	if err != nil {
		result.err = fmt.Errorf("fetch log: %w", err)
		return result
	}

	name, err := logscan.JobName(raw.Content)
	if err != nil {
		result.err = fmt.Errorf("identify job: %w", err)
		return result
	}

	timings, err := logscan.Timings(raw.Content)
	if err != nil {
		result.err = fmt.Errorf("extract timings: %w", err)
		return result
	}

	job := models.Job{
		URL:     raw.JobURL,
		Path:    raw.Path,
		Timings: timings,
	}
	if arch, ok := logscan.CPUMicroarch(raw.Content); ok {
		job.CPUMicroarch = &arch
	}

	result.name = name
	result.job = job
	return result
}
