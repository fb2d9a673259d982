package logscan

import (
	"errors"
	"regexp"
	"strings"
)

const (
	jobNameMarker  = "CI_JOB_NAME="
	agentJobMarker = "AGENT_JOBNAME="
)

// ErrNameNotFound indicates a log that carries no usable job name
// marker.
var ErrNameNotFound = errors.New("job name marker not found in log")

// Azure assigns positional placeholder names like "Job12" when a
// pipeline does not name its jobs explicitly.
var placeholderName = regexp.MustCompile(`^Job\d+$`)

// JobName extracts the canonical job name from a build log.
//
// The primary source is the CI_JOB_NAME environment variable echoed by
// the build scripts. When that only yields an Azure placeholder, the
// agent's job name variable is consulted instead.
func JobName(text string) (string, error) {
	name, err := envJobName(text)
	if err != nil {
		return "", err
	}
	if !placeholderName.MatchString(name) {
		return name, nil
	}
	return agentJobName(text)
}

// envJobName reads the value of the first CI_JOB_NAME= occurrence. The
// variable is echoed inside a bracketed group, so the value runs to the
// closing bracket.
func envJobName(text string) (string, error) {
	for _, line := range strings.Split(text, "\n") {
		rest, ok := cutAfter(line, jobNameMarker)
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, "]")
		return name, nil
	}
	return "", ErrNameNotFound
}

// agentJobName reads the job name from the agent's environment dump,
// where the line has the shape "<var> = <value>" after the marker.
func agentJobName(text string) (string, error) {
	for _, line := range strings.Split(text, "\n") {
		rest, ok := cutAfter(line, agentJobMarker)
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			continue
		}
		return fields[1], nil
	}
	return "", ErrNameNotFound
}
