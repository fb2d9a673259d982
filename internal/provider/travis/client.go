package travis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/lei/ci-timings/internal/provider"
	"github.com/lei/ci-timings/pkg/logger"
)

// Client handles HTTP communication with the Travis CI v3 API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logger.Logger
}

// Build is one entry of the repository build listing
type Build struct {
	ID     uint64      `json:"id"`
	Number string      `json:"number"`
	Commit BuildCommit `json:"commit"`
}

// BuildCommit carries the commit a build ran for
type BuildCommit struct {
	SHA string `json:"sha"`
}

// Job is one job of a build
type Job struct {
	ID     uint64 `json:"id"`
	Number string `json:"number"`
}

// NewClient creates a new Travis API client
func NewClient(baseURL, token string, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

// doRequest performs an authenticated GET against the v3 API
func (c *Client) doRequest(ctx context.Context, path string) (*http.Response, error) {
	c.logger.Debug("provider: http request",
		"vendor", "travis",
		"path", path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.logger.Error("provider: failed to create request", "error", err)
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", provider.UserAgent)
	req.Header.Set("Travis-API-Version", "3")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("provider: http request failed",
			"vendor", "travis",
			"path", path,
			"error", err)
		return nil, err
	}

	c.logger.Debug("provider: http response",
		"vendor", "travis",
		"path", path,
		"status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseError(resp)
	}

	return resp, nil
}

// ListBuilds retrieves one page of finished builds on a branch, newest
// first by start time
func (c *Client) ListBuilds(ctx context.Context, slug, branch string, limit, offset int) ([]Build, error) {
	path := fmt.Sprintf("/repo/%s/builds?branch.name=%s&sort_by=started_at:desc&limit=%d&offset=%d",
		url.PathEscape(slug), url.QueryEscape(branch), limit, offset)

	resp, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var listing struct {
		Builds []Build `json:"builds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode builds listing: %w", err)
	}

	return listing.Builds, nil
}

// ListJobs retrieves the jobs of a build
func (c *Client) ListJobs(ctx context.Context, buildID uint64) ([]Job, error) {
	path := fmt.Sprintf("/build/%d?include=build.jobs", buildID)

	resp, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var build struct {
		Jobs []Job `json:"jobs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&build); err != nil {
		return nil, fmt.Errorf("decode build: %w", err)
	}

	return build.Jobs, nil
}

// JobLog retrieves a job's full log text
func (c *Client) JobLog(ctx context.Context, jobID uint64) (string, error) {
	path := fmt.Sprintf("/v3/job/%d/log.txt", jobID)

	resp, err := c.doRequest(ctx, path)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read log: %w", err)
	}

	return string(text), nil
}

// parseError converts HTTP error responses to provider errors
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return provider.ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return provider.ErrUnauthorized
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return provider.ErrVendorUnavailable
	default:
		var errResp struct {
			Message string `json:"error_message"`
		}

		if json.Unmarshal(body, &errResp) == nil && errResp.Message != "" {
			return &provider.VendorError{
				Status:  resp.StatusCode,
				Message: errResp.Message,
			}
		}

		return &provider.VendorError{
			Status:  resp.StatusCode,
			Message: string(body),
		}
	}
}
