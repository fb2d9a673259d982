package appveyor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lei/ci-timings/internal/logcache"
	"github.com/lei/ci-timings/internal/provider"
	"github.com/lei/ci-timings/pkg/logger"
)

func testDirectory(t *testing.T, handler http.Handler) *Directory {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &Config{
		URL:      srv.URL,
		Account:  "rust-lang",
		Project:  "rust",
		Branch:   "auto",
		Token:    "secret",
		PageSize: 2,
	}
	return NewDirectory(cfg, logcache.New(t.TempDir(), logger.NewNop()), logger.NewNop())
}

func TestLookupContinuesFromLastBuild(t *testing.T) {
	var startIDs []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/projects/rust-lang/rust/history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}

		startIDs = append(startIDs, r.URL.Query().Get("startBuildId"))
		switch r.URL.Query().Get("startBuildId") {
		case "":
			fmt.Fprint(w, `{"builds": [
				{"buildId": 30, "buildNumber": 300, "version": "1.0.300", "commitId": "aaa"},
				{"buildId": 29, "buildNumber": 299, "version": "1.0.299", "commitId": "bbb"}
			]}`)
		case "29":
			fmt.Fprint(w, `{"builds": [
				{"buildId": 28, "buildNumber": 298, "version": "1.0.298", "commitId": "ccc"}
			]}`)
		default:
			fmt.Fprint(w, `{"builds": []}`)
		}
	})

	dir := testDirectory(t, handler)

	build, err := dir.Lookup(context.Background(), "ccc")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	ref := build.(*BuildRef)
	if ref.BuildID != 28 || ref.Version != "1.0.298" {
		t.Errorf("build ref = %+v", ref)
	}
	if len(startIDs) != 2 || startIDs[0] != "" || startIDs[1] != "29" {
		t.Errorf("continuation ids = %v", startIDs)
	}
}

func TestLookupExhaustsHistory(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"builds": []}`)
	})

	dir := testDirectory(t, handler)

	_, err := dir.Lookup(context.Background(), "zzz")
	if !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("Lookup() error = %v, want ErrNotFound", err)
	}
}

func TestLookupRejectsDuplicateCommit(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"builds": [
			{"buildId": 30, "buildNumber": 300, "version": "1.0.300", "commitId": "aaa"},
			{"buildId": 29, "buildNumber": 299, "version": "1.0.299", "commitId": "aaa"}
		]}`)
	})

	dir := testDirectory(t, handler)

	_, err := dir.Lookup(context.Background(), "aaa")
	if !errors.Is(err, provider.ErrDuplicateBuild) {
		t.Fatalf("Lookup() error = %v, want ErrDuplicateBuild", err)
	}
}

func TestJobsAndFetchLog(t *testing.T) {
	var logCalls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/projects/rust-lang/rust/build/1.0.300":
			fmt.Fprint(w, `{"build": {"jobs": [{"jobId": "abc123"}]}}`)
		case "/api/buildjobs/abc123/log":
			logCalls++
			fmt.Fprint(w, "[CI_JOB_NAME=x86_64-msvc]\n")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	dir := testDirectory(t, handler)

	jobs, err := dir.Jobs(context.Background(), &BuildRef{CommitID: "aaa", BuildID: 30, Version: "1.0.300"})
	if err != nil {
		t.Fatalf("Jobs() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("Jobs() returned %d refs, want 1", len(jobs))
	}
	want := "https://ci.appveyor.com/project/rust-lang/rust/builds/30/job/abc123"
	if got := jobs[0].URL(); got != want {
		t.Errorf("job URL = %q, want %q", got, want)
	}

	log, err := dir.FetchLog(context.Background(), jobs[0])
	if err != nil {
		t.Fatalf("FetchLog() error = %v", err)
	}
	if log.Path != "logs/appveyor/30-abc123.gz" {
		t.Errorf("log path = %q", log.Path)
	}

	if _, err := dir.FetchLog(context.Background(), jobs[0]); err != nil {
		t.Fatalf("FetchLog() second call error = %v", err)
	}
	if logCalls != 1 {
		t.Errorf("log fetched %d times, want 1", logCalls)
	}
}
