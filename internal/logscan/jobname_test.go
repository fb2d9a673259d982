package logscan

import (
	"errors"
	"testing"
)

func TestJobName(t *testing.T) {
	tests := []struct {
		name string
		log  string
		want string
	}{
		{
			name: "bracketed env value",
			log:  "travis_fold:start:job\r[CI_JOB_NAME=dist-x86_64-linux]\n",
			want: "dist-x86_64-linux",
		},
		{
			name: "value without closing bracket runs to end of line",
			log:  "export CI_JOB_NAME=x86_64-gnu\n",
			want: "x86_64-gnu",
		},
		{
			name: "first occurrence wins",
			log: "[CI_JOB_NAME=first]\n" +
				"[CI_JOB_NAME=second]\n",
			want: "first",
		},
		{
			name: "placeholder falls back to agent job name",
			log: "[CI_JOB_NAME=Job12]\n" +
				"AGENT_JOBNAME=Job12 dist-i686-mingw\n",
			want: "dist-i686-mingw",
		},
		{
			name: "agent lines without a second token are skipped",
			log: "[CI_JOB_NAME=Job3]\n" +
				"AGENT_JOBNAME=Job3\n" +
				"AGENT_JOBNAME=Job3 x86_64-msvc\n",
			want: "x86_64-msvc",
		},
		{
			name: "Job prefix without trailing digits is not a placeholder",
			log:  "[CI_JOB_NAME=JobServer]\n",
			want: "JobServer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JobName(tt.log)
			if err != nil {
				t.Fatalf("JobName() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("JobName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJobNameNotFound(t *testing.T) {
	tests := []struct {
		name string
		log  string
	}{
		{
			name: "no marker at all",
			log:  "compiling stage0 artifacts\nall done\n",
		},
		{
			name: "placeholder without agent fallback",
			log:  "[CI_JOB_NAME=Job7]\n",
		},
		{
			name: "placeholder with unusable agent lines",
			log: "[CI_JOB_NAME=Job7]\n" +
				"AGENT_JOBNAME=Job7\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JobName(tt.log)
			if !errors.Is(err, ErrNameNotFound) {
				t.Fatalf("JobName() error = %v, want ErrNameNotFound", err)
			}
		})
	}
}
