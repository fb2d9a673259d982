package api

import (
	"strconv"
	"strings"

	"github.com/lei/ci-timings/internal/models"
)

// FilterJobs filters job stats based on query parameters
func FilterJobs(jobs []models.JobStat, search string, minCount *int) []models.JobStat {
	if search == "" && minCount == nil {
		return jobs
	}

	filtered := make([]models.JobStat, 0, len(jobs))
	searchLower := strings.ToLower(search)

	for _, j := range jobs {
		// Search filter
		if search != "" && !strings.Contains(strings.ToLower(j.Name), searchLower) {
			continue
		}

		// Minimum run count filter
		if minCount != nil && j.Count < *minCount {
			continue
		}

		filtered = append(filtered, j)
	}

	return filtered
}

// parseIntParam parses non-negative integer query parameters
func parseIntParam(value string) *int {
	if value == "" {
		return nil
	}

	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return nil
	}

	return &n
}
