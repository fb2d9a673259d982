package models

// GitCommit identifies one revision of the tracked repository
type GitCommit struct {
	SHA  string `json:"sha"`
	Date string `json:"date"` // ISO 8601 author date
}

// Commit is the published timing record for one revision, keyed by
// canonical job name
type Commit struct {
	Jobs map[string]Job `json:"jobs"`
}

// NewCommit creates an empty commit record
func NewCommit() *Commit {
	return &Commit{
		Jobs: make(map[string]Job),
	}
}

// Job holds the extracted timings of a single CI job
type Job struct {
	URL          string             `json:"url"`
	Path         string             `json:"path"` // cache-relative location of the raw log
	CPUMicroarch *string            `json:"cpu_microarch"`
	Timings      map[string]*Timing `json:"timings"`
}

// Timing is the measured duration of one build step, with the portion
// attributable to individual compiler invocations broken out by crate
type Timing struct {
	Dur   float64            `json:"dur"`
	Parts map[string]float64 `json:"parts"`
}

// NewTiming creates a zeroed timing entry
func NewTiming() *Timing {
	return &Timing{
		Parts: make(map[string]float64),
	}
}

// RawLog is the full text of one job's build log
type RawLog struct {
	JobURL  string // human-facing URL of the job
	Path    string // cache-relative location the log was stored under
	Content string
}

// Overall is the aggregated dashboard payload covering the most recent
// published commits, oldest first
type Overall struct {
	Commits []GitCommit `json:"commits"`
	Series  []Series    `json:"series"`
}

// Series is one job's duration across the aggregation window, aligned
// with Overall.Commits; commits the job did not run on carry a zero
type Series struct {
	Name string    `json:"name"`
	Data []float64 `json:"data"`
}

// JobStat summarizes one job across the aggregation window
type JobStat struct {
	Name         string  `json:"name"`
	Count        int     `json:"count"`
	MeanDuration float64 `json:"mean_duration"`
}
