// Package site aggregates published per-commit records into the JSON
// documents the dashboard reads: one overall time-series file, one job
// summary file, and one raw record file per commit.
package site

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/lei/ci-timings/internal/models"
	"github.com/lei/ci-timings/internal/publish"
	"github.com/lei/ci-timings/internal/store"
	"github.com/lei/ci-timings/pkg/logger"
)

const (
	// DefaultWindow bounds how many of the newest commits feed the
	// aggregation.
	DefaultWindow = 100

	// DefaultExcludePhase is the diagnostic phase left out of duration
	// sums. Distcheck rebuilds the world a second time and would dwarf
	// the signal of every real phase.
	DefaultExcludePhase = "Distcheck"
)

// Builder derives the site data from published records
type Builder struct {
	gate         *publish.Gate
	outDir       string
	window       int
	excludePhase string
	logger       *logger.Logger
}

// NewBuilder creates a site builder writing into outDir
func NewBuilder(gate *publish.Gate, outDir string, window int, excludePhase string, log *logger.Logger) *Builder {
	if window <= 0 {
		window = DefaultWindow
	}
	if excludePhase == "" {
		excludePhase = DefaultExcludePhase
	}

	return &Builder{
		gate:         gate,
		outDir:       outDir,
		window:       window,
		excludePhase: excludePhase,
		logger:       log,
	}
}

// Build aggregates the newest commits of the given history, newest
// first. Commits without a published record are left out of the
// window; ingestion may still be catching up on them.
func (b *Builder) Build(ctx context.Context, commits []models.GitCommit) error {
	if len(commits) > b.window {
		commits = commits[:b.window]
	}

	var kept []models.GitCommit
	var records []*models.Commit
	for _, commit := range commits {
		record, err := b.gate.Record(ctx, commit.SHA)
		if errors.Is(err, store.ErrKeyNotFound) {
			b.logger.Warn("site: skipping commit without published record", "sha", commit.SHA)
			continue
		}
		if err != nil {
			return err
		}
		kept = append(kept, commit)
		records = append(records, record)
	}

	b.logger.Info("site: aggregating records",
		"window", len(commits),
		"records", len(kept))

	if err := os.MkdirAll(b.outDir, 0o755); err != nil {
		return fmt.Errorf("create site dir: %w", err)
	}
	if err := b.writeOverall(kept, records); err != nil {
		return err
	}
	if err := b.writeEachCommit(kept, records); err != nil {
		return err
	}
	return nil
}

// jobStat accumulates one job's appearances across the window
type jobStat struct {
	count int
	total float64
}

// writeOverall emits overall.json and jobs.json. Jobs are ranked by
// descending mean duration, names breaking ties so the order is
// stable.
func (b *Builder) writeOverall(commits []models.GitCommit, records []*models.Commit) error {
	stats := make(map[string]*jobStat)
	for _, record := range records {
		for name, job := range record.Jobs {
			stat := stats[name]
			if stat == nil {
				stat = &jobStat{}
				stats[name] = stat
			}
			stat.count++
			stat.total += b.jobDuration(job)
		}
	}

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		mi := stats[names[i]].total / float64(stats[names[i]].count)
		mj := stats[names[j]].total / float64(stats[names[j]].count)
		if mi != mj {
			return mi > mj
		}
		return names[i] < names[j]
	})

	overall := models.Overall{
		Commits: make([]models.GitCommit, len(commits)),
		Series:  make([]models.Series, 0, len(names)),
	}
	copy(overall.Commits, commits)

	for _, name := range names {
		series := models.Series{
			Name: name,
			Data: make([]float64, 0, len(records)),
		}
		for _, record := range records {
			job, ok := record.Jobs[name]
			if !ok {
				series.Data = append(series.Data, 0)
				continue
			}
			series.Data = append(series.Data, b.jobDuration(job))
		}
		overall.Series = append(overall.Series, series)
	}

	// Records arrive newest first; the dashboard draws a chronological
	// axis.
	slices.Reverse(overall.Commits)
	for i := range overall.Series {
		slices.Reverse(overall.Series[i].Data)
	}

	if err := b.writeJSON("overall.json", overall); err != nil {
		return err
	}

	jobStats := make([]models.JobStat, 0, len(names))
	for _, name := range names {
		jobStats = append(jobStats, models.JobStat{
			Name:         name,
			Count:        stats[name].count,
			MeanDuration: stats[name].total / float64(stats[name].count),
		})
	}
	return b.writeJSON("jobs.json", jobStats)
}

// writeEachCommit emits one raw record file per commit
func (b *Builder) writeEachCommit(commits []models.GitCommit, records []*models.Commit) error {
	for i, commit := range commits {
		if err := b.writeJSON(commit.SHA+".json", records[i]); err != nil {
			return err
		}
	}
	return nil
}

// jobDuration sums a job's phase durations, leaving out the excluded
// diagnostic phase
func (b *Builder) jobDuration(job models.Job) float64 {
	var total float64
	for phase, timing := range job.Timings {
		if phase == b.excludePhase {
			continue
		}
		total += timing.Dur
	}
	return total
}

func (b *Builder) writeJSON(name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("serialize %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(b.outDir, name), raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
