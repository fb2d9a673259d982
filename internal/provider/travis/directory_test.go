package travis

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
		Slug:     "rust-lang/rust",
		Branch:   "auto",
		Token:    "secret",
		PageSize: 2,
	}
	return NewDirectory(cfg, logcache.New(t.TempDir(), logger.NewNop()), logger.NewNop())
}

func TestLookupPagesUntilFound(t *testing.T) {
	var listCalls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.EscapedPath(); got != "/repo/rust-lang%2Frust/builds" {
			t.Errorf("unexpected path %s", got)
		}
		if got := r.Header.Get("Travis-API-Version"); got != "3" {
			t.Errorf("Travis-API-Version = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "token secret" {
			t.Errorf("Authorization = %q", got)
		}

		listCalls++
		switch r.URL.Query().Get("offset") {
		case "0":
			fmt.Fprint(w, `{"builds": [
				{"id": 10, "number": "100", "commit": {"sha": "aaa"}},
				{"id": 11, "number": "101", "commit": {"sha": "bbb"}}
			]}`)
		case "2":
			fmt.Fprint(w, `{"builds": [
				{"id": 12, "number": "102", "commit": {"sha": "ccc"}}
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
	if ref.BuildID != 12 {
		t.Errorf("BuildID = %d, want 12", ref.BuildID)
	}
	if listCalls != 2 {
		t.Errorf("listing fetched %d times, want 2", listCalls)
	}

	// Already indexed commits resolve without another page load.
	if _, err := dir.Lookup(context.Background(), "aaa"); err != nil {
		t.Fatalf("Lookup() of indexed commit error = %v", err)
	}
	if listCalls != 2 {
		t.Errorf("listing fetched %d times after cached lookup, want 2", listCalls)
	}
}

func TestLookupExhaustsHistory(t *testing.T) {
	var listCalls int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listCalls++
		fmt.Fprint(w, `{"builds": []}`)
	})

	dir := testDirectory(t, handler)

	_, err := dir.Lookup(context.Background(), "zzz")
	if !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("Lookup() error = %v, want ErrNotFound", err)
	}

	// Exhaustion is remembered; later misses do not hit the API again.
	if _, err := dir.Lookup(context.Background(), "yyy"); !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("Lookup() after exhaustion error = %v, want ErrNotFound", err)
	}
	if listCalls != 1 {
		t.Errorf("listing fetched %d times, want 1", listCalls)
	}
}

func TestLookupRejectsDuplicateCommit(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"builds": [
			{"id": 10, "number": "100", "commit": {"sha": "aaa"}},
			{"id": 11, "number": "101", "commit": {"sha": "aaa"}}
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
		case "/build/12":
			fmt.Fprint(w, `{"jobs": [{"id": 7, "number": "102.1"}, {"id": 8, "number": "102.2"}]}`)
		case "/v3/job/7/log.txt":
			logCalls++
			fmt.Fprint(w, "[CI_JOB_NAME=dist-x86_64-linux]\n")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	dir := testDirectory(t, handler)

	jobs, err := dir.Jobs(context.Background(), &BuildRef{CommitID: "ccc", BuildID: 12})
	if err != nil {
		t.Fatalf("Jobs() error = %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("Jobs() returned %d refs, want 2", len(jobs))
	}
	if got := jobs[0].URL(); got != "https://travis-ci.com/rust-lang/rust/jobs/7" {
		t.Errorf("job URL = %q", got)
	}

	log, err := dir.FetchLog(context.Background(), jobs[0])
	if err != nil {
		t.Fatalf("FetchLog() error = %v", err)
	}
	if log.Content != "[CI_JOB_NAME=dist-x86_64-linux]\n" {
		t.Errorf("log content = %q", log.Content)
	}
	if log.Path != "logs/travis/7.gz" {
		t.Errorf("log path = %q", log.Path)
	}

	// Second fetch is served from the cache.
	if _, err := dir.FetchLog(context.Background(), jobs[0]); err != nil {
		t.Fatalf("FetchLog() second call error = %v", err)
	}
	if logCalls != 1 {
		t.Errorf("log fetched %d times, want 1", logCalls)
	}
}

func TestLookupReportsBadRepository(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	dir := testDirectory(t, handler)

	_, err := dir.Lookup(context.Background(), "aaa")
	if err == nil || errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("Lookup() error = %v, want a vendor error", err)
	}
	var vendorErr *provider.VendorError
	if !errors.As(err, &vendorErr) {
		t.Fatalf("error %v is not a VendorError", err)
	}
}
