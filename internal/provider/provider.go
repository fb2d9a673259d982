package provider

import (
	"context"

	"github.com/lei/ci-timings/internal/models"
)

// UserAgent identifies this tool to vendor APIs.
const UserAgent = "ci-timings"

// Directory abstracts one CI vendor's build history. Implementations
// page through the vendor's history lazily and remember every build
// they have seen, so repeated lookups never refetch a page.
type Directory interface {
	// Name returns the vendor name ("travis", "appveyor", "azure")
	Name() string

	// Lookup resolves the build for a commit, loading more history as
	// needed. Returns ErrNotFound once the vendor's history is
	// exhausted without a match.
	Lookup(ctx context.Context, commitID string) (BuildRef, error)

	// Jobs enumerates the jobs of a resolved build
	Jobs(ctx context.Context, build BuildRef) ([]JobRef, error)

	// FetchLog returns a job's full log, reading through the log cache
	FetchLog(ctx context.Context, job JobRef) (*models.RawLog, error)

	// Strict reports whether a failure on a single job fails the whole
	// commit. Vendors with unreliable log retention return false and
	// have failing jobs dropped with a warning instead.
	Strict() bool
}

// BuildRef is a vendor-specific build reference
type BuildRef interface {
	Vendor() string // "travis", "appveyor", "azure"
}

// JobRef is a vendor-specific job reference
type JobRef interface {
	Vendor() string
	URL() string // The human-facing job URL recorded in published data
}
