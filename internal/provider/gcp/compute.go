// Package gcp counts running Compute Engine instances for the GCP cost
// estimate. No billing data is read.
package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2/google"

	"github.com/finopsmind/costengine/internal/model"
	"github.com/finopsmind/costengine/internal/provider"
)

const (
	computeScope   = "https://www.googleapis.com/auth/compute.readonly"
	defaultBaseURL = "https://compute.googleapis.com/compute/v1"
	statusRunning  = "RUNNING"
)

// Client implements provider.InstanceCounter for one project.
type Client struct {
	projectID  string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient authenticates with the service account key when one is given,
// and with application default credentials otherwise.
func NewClient(ctx context.Context, creds *model.GCPCredentials, baseURL string, logger *slog.Logger) (*Client, error) {
	if creds == nil || creds.ProjectID == "" {
		return nil, fmt.Errorf("gcp: project id is required")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	var httpClient *http.Client
	if creds.ServiceAccountJSON != "" {
		conf, err := google.JWTConfigFromJSON([]byte(creds.ServiceAccountJSON), computeScope)
		if err != nil {
			return nil, fmt.Errorf("gcp: failed to parse service account JSON: %w", err)
		}
		httpClient = conf.Client(context.Background())
	} else {
		var err error
		httpClient, err = google.DefaultClient(ctx, computeScope)
		if err != nil {
			return nil, fmt.Errorf("gcp: no default credentials: %w", err)
		}
	}
	httpClient.Timeout = 30 * time.Second

	return newClient(creds.ProjectID, baseURL, httpClient, logger), nil
}

func newClient(projectID, baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{projectID: projectID, baseURL: baseURL, httpClient: httpClient, logger: logger}
}

// Factory returns a provider.CounterFactory against the given API base URL.
func Factory(baseURL string, logger *slog.Logger) provider.CounterFactory {
	return func(ctx context.Context, creds *model.GCPCredentials) (provider.InstanceCounter, error) {
		return NewClient(ctx, creds, baseURL, logger)
	}
}

type aggregatedListResponse struct {
	Items map[string]struct {
		Instances []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"instances"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// CountRunning counts RUNNING instances across every zone of the project.
func (c *Client) CountRunning(ctx context.Context) (int, error) {
	running := 0
	pageToken := ""

	for {
		q := url.Values{}
		q.Set("filter", "status = RUNNING")
		q.Set("maxResults", "500")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		apiURL := fmt.Sprintf("%s/projects/%s/aggregated/instances?%s", c.baseURL, url.PathEscape(c.projectID), q.Encode())

		page, err := c.get(ctx, apiURL)
		if err != nil {
			return 0, err
		}
		for _, scope := range page.Items {
			for _, inst := range scope.Instances {
				if inst.Status == statusRunning {
					running++
				}
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	c.logger.Debug("counted running GCP instances", "project", c.projectID, "running", running)
	return running, nil
}

func (c *Client) get(ctx context.Context, apiURL string) (*aggregatedListResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gcp: API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("gcp: API error %d: %s", resp.StatusCode, string(body))
	}

	var page aggregatedListResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("gcp: failed to decode response: %w", err)
	}
	return &page, nil
}
