package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"

	"github.com/go-chi/chi/v5"
	"github.com/lei/ci-timings/internal/models"
)

// Handlers serves the generated site documents over HTTP
type Handlers struct {
	siteDir string
}

// NewHandlers creates a new handlers instance serving files from siteDir
func NewHandlers(siteDir string) *Handlers {
	return &Handlers{siteDir: siteDir}
}

// commitIDPattern matches an abbreviated or full hex commit id. Anything else
// is rejected before it can name a path under the site directory.
var commitIDPattern = regexp.MustCompile(`^[0-9a-f]{7,40}$`)

// Health handles health check requests
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Overall handles GET /overall.json
func (h *Handlers) Overall(w http.ResponseWriter, r *http.Request) {
	h.serveSiteFile(w, r, "overall.json")
}

// CommitRecord handles GET /commits/{sha}.json
func (h *Handlers) CommitRecord(w http.ResponseWriter, r *http.Request) {
	logger := GetLogger(r.Context())
	sha := chi.URLParam(r, "sha")

	if !commitIDPattern.MatchString(sha) {
		if logger != nil {
			logger.Warn("invalid commit id", "sha", sha)
		}
		respondError(w, r, http.StatusBadRequest, "invalid commit id")
		return
	}

	h.serveSiteFile(w, r, sha+".json")
}

// ListJobs handles GET /api/jobs
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	logger := GetLogger(r.Context())

	data, err := os.ReadFile(filepath.Join(h.siteDir, "jobs.json"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			respondError(w, r, http.StatusNotFound, "site not generated")
			return
		}
		if logger != nil {
			logger.Error("reading job stats failed", "error", err)
		}
		respondError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	var jobs []models.JobStat
	if err := json.Unmarshal(data, &jobs); err != nil {
		if logger != nil {
			logger.Error("corrupt job stats document", "error", err)
		}
		respondError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	search := r.URL.Query().Get("search")
	minCount := parseIntParam(r.URL.Query().Get("min_count"))

	filtered := FilterJobs(jobs, search, minCount)

	if logger != nil {
		logger.Debug("job stats listed",
			"count", len(filtered),
			"search", search)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jobs": filtered,
	})
}

// serveSiteFile writes one generated JSON document from the site directory
func (h *Handlers) serveSiteFile(w http.ResponseWriter, r *http.Request, name string) {
	logger := GetLogger(r.Context())

	data, err := os.ReadFile(filepath.Join(h.siteDir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if logger != nil {
				logger.Debug("site document missing", "file", name)
			}
			respondError(w, r, http.StatusNotFound, "not found")
			return
		}
		if logger != nil {
			logger.Error("reading site document failed", "file", name, "error", err)
		}
		respondError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// respondError writes a JSON error response with logging
func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	logger := GetLogger(r.Context())
	requestID := GetRequestID(r.Context())

	// Log the error with full context
	if logger != nil {
		logger.Error("returning error response",
			"status", status,
			"message", message,
			"request_id", requestID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message":    message,
			"code":       status,
			"request_id": requestID,
		},
	})
}
