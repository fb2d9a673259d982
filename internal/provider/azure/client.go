package azure

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

const apiVersion = "5.0"

// Client handles HTTP communication with the Azure DevOps build API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logger.Logger
}

// Build is one entry of the build listing
type Build struct {
	ID            uint64 `json:"id"`
	BuildNumber   string `json:"buildNumber"`
	SourceVersion string `json:"sourceVersion"`
}

// Record is one node of a build's timeline tree
type Record struct {
	ID   string  `json:"id"`
	Type string  `json:"type"`
	Name string  `json:"name"`
	Log  *LogRef `json:"log"`
}

// LogRef points at the log of a timeline record. Records that produced
// no output carry none.
type LogRef struct {
	ID int `json:"id"`
}

// NewClient creates a new Azure DevOps API client
func NewClient(baseURL, token string, log *logger.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

// doRequest performs an authenticated GET. Azure DevOps selects the
// API revision through the api-version query parameter carried by
// every path.
func (c *Client) doRequest(ctx context.Context, path, accept string) (*http.Response, error) {
	c.logger.Debug("provider: http request",
		"vendor", "azure",
		"path", path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		c.logger.Error("provider: failed to create request", "error", err)
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", provider.UserAgent)
	req.Header.Set("Accept", accept)
	if c.token != "" {
		// Personal access tokens go in the password slot of basic auth.
		req.SetBasicAuth("", c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("provider: http request failed",
			"vendor", "azure",
			"path", path,
			"error", err)
		return nil, err
	}

	c.logger.Debug("provider: http response",
		"vendor", "azure",
		"path", path,
		"status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseError(resp)
	}

	return resp, nil
}

// ListBuilds retrieves the most recent builds on a branch, newest
// first
func (c *Client) ListBuilds(ctx context.Context, org, project, branch string, top int) ([]Build, error) {
	path := fmt.Sprintf("/%s/%s/_apis/build/builds?branchName=%s&$top=%d&api-version=%s",
		org, project, url.QueryEscape("refs/heads/"+branch), top, apiVersion)

	resp, err := c.doRequest(ctx, path, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var listing struct {
		Count  int     `json:"count"`
		Builds []Build `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode builds listing: %w", err)
	}

	return listing.Builds, nil
}

// Timeline retrieves the timeline records of a build
func (c *Client) Timeline(ctx context.Context, org, project string, buildID uint64) ([]Record, error) {
	path := fmt.Sprintf("/%s/%s/_apis/build/builds/%d/timeline?api-version=%s",
		org, project, buildID, apiVersion)

	resp, err := c.doRequest(ctx, path, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var timeline struct {
		Records []Record `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&timeline); err != nil {
		return nil, fmt.Errorf("decode timeline: %w", err)
	}

	return timeline.Records, nil
}

// Log retrieves one timeline log as plain text
func (c *Client) Log(ctx context.Context, org, project string, buildID uint64, logID int) (string, error) {
	path := fmt.Sprintf("/%s/%s/_apis/build/builds/%d/logs/%d?api-version=%s",
		org, project, buildID, logID, apiVersion)

	resp, err := c.doRequest(ctx, path, "text/plain")
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
