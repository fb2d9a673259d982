package logscan

import "strings"

// Build scripts dump /proc/cpuinfo near the top of every log. The
// family/model pairs below cover the Intel parts the CI fleet has run
// on; see https://en.wikichip.org/wiki/intel/cpuid for the full table.
const (
	cpuFamilyMarker = "cpu family\t: "
	cpuModelMarker  = "model\t\t: "
)

var intelMicroarchs = []struct {
	family string
	model  string
	arch   string
}{
	{"6", "45", "sandybridge"},
	{"6", "62", "ivybridge"},
	{"6", "63", "haswell"},
	{"6", "79", "broadwell"},
	{"6", "85", "skylake"},
	{"6", "86", "broadwell"},
}

// CPUMicroarch reports the microarchitecture of the worker that
// produced the log. The first "cpu family" line is paired with the
// next "model" line; the decision is made on that first pair alone.
// Logs without cpuinfo output, or with a pair the table does not
// cover, yield no value.
func CPUMicroarch(text string) (string, bool) {
	var family string
	var haveFamily bool

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if !haveFamily {
			if rest, ok := cutAfter(line, cpuFamilyMarker); ok {
				family = rest
				haveFamily = true
			}
			continue
		}

		if model, ok := cutAfter(line, cpuModelMarker); ok {
			for _, m := range intelMicroarchs {
				if m.family == family && m.model == model {
					return m.arch, true
				}
			}
			return "", false
		}
	}

	return "", false
}
