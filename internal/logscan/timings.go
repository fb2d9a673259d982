// Package logscan extracts structured data from raw CI build logs:
// per-step timings, the canonical job name, and the CPU
// microarchitecture of the worker that produced the log.
package logscan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lei/ci-timings/internal/models"
)

const (
	rustcTimingMarker = "[RUSTC-TIMING] "
	stepTimingMarker  = "[TIMING] "
	stepSeparator     = " -- "
)

// MalformedTimingError reports a timing marker whose numeric payload
// could not be parsed. A log that emits a marker with a broken value
// cannot be trusted, so extraction stops at the first occurrence.
type MalformedTimingError struct {
	Line string
	Err  error
}

func (e *MalformedTimingError) Error() string {
	return fmt.Sprintf("malformed timing line %q: %v", e.Line, e.Err)
}

func (e *MalformedTimingError) Unwrap() error {
	return e.Err
}

// Timings extracts per-step timings from a build log.
//
// Compiler invocations report "[RUSTC-TIMING] <crate> <seconds>" as they
// finish and accumulate in a pending buffer. When a "[TIMING] <step> --
// <seconds>" boundary is reached, the buffered crate times are attributed
// to that step and the buffer is drained. Steps and crates that appear
// more than once accumulate. Crate times still pending when the log ends
// belong to no step and are discarded.
func Timings(text string) (map[string]*models.Timing, error) {
	result := make(map[string]*models.Timing)
	pending := make(map[string]float64)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if rest, ok := cutAfter(line, rustcTimingMarker); ok {
			i := strings.LastIndexByte(rest, ' ')
			if i < 0 {
				return nil, &MalformedTimingError{Line: line, Err: errors.New("missing value separator")}
			}
			v, err := strconv.ParseFloat(rest[i+1:], 64)
			if err != nil {
				return nil, &MalformedTimingError{Line: line, Err: err}
			}
			pending[rest[:i]] += v
		}

		if rest, ok := cutAfter(line, stepTimingMarker); ok {
			step, raw, found := strings.Cut(rest, stepSeparator)
			if !found {
				// Progress output occasionally quotes the marker without
				// a payload; those lines carry no data.
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, &MalformedTimingError{Line: line, Err: err}
			}
			t := result[step]
			if t == nil {
				t = models.NewTiming()
				result[step] = t
			}
			t.Dur += v
			for crate, dur := range pending {
				t.Parts[crate] += dur
			}
			clear(pending)
		}
	}

	return result, nil
}

// cutAfter returns the part of s following the first occurrence of
// marker. The marker may appear anywhere in the line; CI runners prefix
// output with timestamps and escape sequences.
func cutAfter(s, marker string) (string, bool) {
	i := strings.Index(s, marker)
	if i < 0 {
		return "", false
	}
	return s[i+len(marker):], true
}
