// Package gitlog lists the commits whose CI timings are tracked. The
// merge bot is the sole author of commits on the tracked branch, so
// filtering by author yields exactly the merged revisions, newest
// first.
package gitlog

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/lei/ci-timings/internal/models"
)

// Commits returns the commits authored by author in the checkout at
// repo, newest first.
func Commits(ctx context.Context, repo, author string) ([]models.GitCommit, error) {
	cmd := exec.CommandContext(ctx, "git", "log", "--author="+author, "--pretty=%H %aI")
	cmd.Dir = repo

	out, err := cmd.Output()
	if err != nil {
		if exit, ok := err.(*exec.ExitError); ok && len(exit.Stderr) > 0 {
			return nil, fmt.Errorf("git log in %s: %w: %s", repo, err, strings.TrimSpace(string(exit.Stderr)))
		}
		return nil, fmt.Errorf("git log in %s: %w", repo, err)
	}

	return parseLog(string(out))
}

// parseLog parses "git log --pretty=%H %aI" output: one commit per
// line, hash and author date separated by a single space.
func parseLog(out string) ([]models.GitCommit, error) {
	var commits []models.GitCommit
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sha, date, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("malformed git log line %q", line)
		}
		commits = append(commits, models.GitCommit{SHA: sha, Date: date})
	}
	return commits, nil
}
