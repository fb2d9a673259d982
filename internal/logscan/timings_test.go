package logscan

import (
	"errors"
	"testing"
)

func TestTimings(t *testing.T) {
	tests := []struct {
		name string
		log  string
		want map[string]map[string]float64 // step -> {"" -> dur, crate -> part}
	}{
		{
			name: "crate times accumulate into the next step",
			log: "[RUSTC-TIMING] crate_a 1.5\n" +
				"[RUSTC-TIMING] crate_a 1.5\n" +
				"[TIMING] build -- 4.0\n",
			want: map[string]map[string]float64{
				"build": {"": 4.0, "crate_a": 3.0},
			},
		},
		{
			name: "pending buffer drains at each step boundary",
			log: "[RUSTC-TIMING] crate_a 1.0\n" +
				"[TIMING] configure -- 2.0\n" +
				"[RUSTC-TIMING] crate_b 3.0\n" +
				"[TIMING] build -- 4.0\n",
			want: map[string]map[string]float64{
				"configure": {"": 2.0, "crate_a": 1.0},
				"build":     {"": 4.0, "crate_b": 3.0},
			},
		},
		{
			name: "repeated steps accumulate duration",
			log: "[TIMING] test -- 1.5\n" +
				"[TIMING] test -- 2.5\n",
			want: map[string]map[string]float64{
				"test": {"": 4.0},
			},
		},
		{
			name: "crate times after the last step are dropped",
			log: "[TIMING] build -- 1.0\n" +
				"[RUSTC-TIMING] orphan 9.0\n",
			want: map[string]map[string]float64{
				"build": {"": 1.0},
			},
		},
		{
			name: "crate names may contain spaces",
			log: "[RUSTC-TIMING] core test 0.5\n" +
				"[TIMING] build -- 1.0\n",
			want: map[string]map[string]float64{
				"build": {"": 1.0, "core test": 0.5},
			},
		},
		{
			name: "markers are recognized mid-line",
			log: "2019-05-01T12:00:00Z [RUSTC-TIMING] std 2.0\n" +
				"2019-05-01T12:00:01Z [TIMING] build -- 3.0\n",
			want: map[string]map[string]float64{
				"build": {"": 3.0, "std": 2.0},
			},
		},
		{
			name: "step line without separator is skipped",
			log: "[TIMING] build\n" +
				"[TIMING] build -- 1.0\n",
			want: map[string]map[string]float64{
				"build": {"": 1.0},
			},
		},
		{
			name: "empty log yields no timings",
			log:  "",
			want: map[string]map[string]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Timings(tt.log)
			if err != nil {
				t.Fatalf("Timings() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d steps, want %d", len(got), len(tt.want))
			}
			for step, expect := range tt.want {
				timing, ok := got[step]
				if !ok {
					t.Fatalf("missing step %q", step)
				}
				if timing.Dur != expect[""] {
					t.Errorf("step %q dur = %v, want %v", step, timing.Dur, expect[""])
				}
				if len(timing.Parts) != len(expect)-1 {
					t.Errorf("step %q has %d parts, want %d", step, len(timing.Parts), len(expect)-1)
				}
				for crate, dur := range expect {
					if crate == "" {
						continue
					}
					if timing.Parts[crate] != dur {
						t.Errorf("step %q part %q = %v, want %v", step, crate, timing.Parts[crate], dur)
					}
				}
			}
		})
	}
}

func TestTimingsMalformed(t *testing.T) {
	tests := []struct {
		name string
		log  string
	}{
		{
			name: "unparseable crate time",
			log:  "[RUSTC-TIMING] crate_a fast\n",
		},
		{
			name: "crate line without value",
			log:  "[RUSTC-TIMING] crate_a\n",
		},
		{
			name: "unparseable step time",
			log:  "[TIMING] build -- soon\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Timings(tt.log)
			if err == nil {
				t.Fatal("Timings() expected error, got nil")
			}
			var malformed *MalformedTimingError
			if !errors.As(err, &malformed) {
				t.Fatalf("error %v is not a MalformedTimingError", err)
			}
		})
	}
}
