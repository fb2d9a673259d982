package appveyor

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

// Client handles HTTP communication with the AppVeyor REST API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logger.Logger
}

// Build is one entry of the project build history
type Build struct {
	ID       uint64 `json:"buildId"`
	Number   uint64 `json:"buildNumber"`
	Version  string `json:"version"`
	CommitID string `json:"commitId"`
}

// Job is one job of a build
type Job struct {
	ID string `json:"jobId"`
}

// NewClient creates a new AppVeyor API client
func NewClient(baseURL, token string, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

// doRequest performs an authenticated GET against the REST API
func (c *Client) doRequest(ctx context.Context, path string) (*http.Response, error) {
	c.logger.Debug("provider: http request",
		"vendor", "appveyor",
		"path", path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.logger.Error("provider: failed to create request", "error", err)
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", provider.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("provider: http request failed",
			"vendor", "appveyor",
			"path", path,
			"error", err)
		return nil, err
	}

	c.logger.Debug("provider: http response",
		"vendor", "appveyor",
		"path", path,
		"status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseError(resp)
	}

	return resp, nil
}

// History retrieves one page of build history on a branch, newest
// first. A non-zero startBuildID resumes the listing strictly below
// that build.
func (c *Client) History(ctx context.Context, account, project, branch string, records int, startBuildID uint64) ([]Build, error) {
	path := fmt.Sprintf("/api/projects/%s/%s/history?branch=%s&recordsNumber=%d",
		account, project, url.QueryEscape(branch), records)
	if startBuildID != 0 {
		path += fmt.Sprintf("&startBuildId=%d", startBuildID)
	}

	resp, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var history struct {
		Builds []Build `json:"builds"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}

	return history.Builds, nil
}

// BuildJobs retrieves the jobs of a build, addressed by its version
// string
func (c *Client) BuildJobs(ctx context.Context, account, project, version string) ([]Job, error) {
	path := fmt.Sprintf("/api/projects/%s/%s/build/%s", account, project, url.PathEscape(version))

	resp, err := c.doRequest(ctx, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var detail struct {
		Build struct {
			Jobs []Job `json:"jobs"`
		} `json:"build"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err != nil {
		return nil, fmt.Errorf("decode build: %w", err)
	}

	return detail.Build.Jobs, nil
}

// JobLog retrieves a job's full log text
func (c *Client) JobLog(ctx context.Context, jobID string) (string, error) {
	path := fmt.Sprintf("/api/buildjobs/%s/log", url.PathEscape(jobID))

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
			Message string `json:"message"`
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
