// Package azure reads costs from the Azure Cost Management REST API.
package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/finopsmind/costengine/internal/model"
	"github.com/finopsmind/costengine/internal/provider"
)

const (
	costAPIVersion         = "2023-11-01"
	subscriptionAPIVersion = "2022-12-01"
	managementScope        = "https://management.azure.com/.default"
)

// Endpoints locates the Azure services. Zero fields use the public cloud.
type Endpoints struct {
	Management string
	Login      string
}

func (e Endpoints) withDefaults() Endpoints {
	if e.Management == "" {
		e.Management = "https://management.azure.com"
	}
	if e.Login == "" {
		e.Login = "https://login.microsoftonline.com"
	}
	return e
}

// Client implements provider.CostSource for one subscription.
type Client struct {
	subscriptionID string
	baseURL        string
	httpClient     *http.Client
	logger         *slog.Logger
}

// NewClient creates a client authenticated with the service principal's
// client credentials.
func NewClient(creds *model.AzureCredentials, endpoints Endpoints, logger *slog.Logger) (*Client, error) {
	if creds == nil || creds.TenantID == "" || creds.ClientID == "" || creds.ClientSecret == "" || creds.SubscriptionID == "" {
		return nil, fmt.Errorf("azure: tenant_id, client_id, client_secret, and subscription_id are required")
	}
	endpoints = endpoints.withDefaults()

	cc := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", endpoints.Login, creds.TenantID),
		Scopes:       []string{managementScope},
	}
	// The token source outlives any single request context.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Timeout: 30 * time.Second})
	httpClient := cc.Client(tokenCtx)
	httpClient.Timeout = 60 * time.Second

	return newClient(creds.SubscriptionID, endpoints.Management, httpClient, logger), nil
}

func newClient(subscriptionID, baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		subscriptionID: subscriptionID,
		baseURL:        baseURL,
		httpClient:     httpClient,
		logger:         logger,
	}
}

// Factory returns a provider.SourceFactory for Azure profiles.
func Factory(endpoints Endpoints, logger *slog.Logger) provider.SourceFactory {
	return func(_ context.Context, profile *model.Profile, _ string) (provider.CostSource, error) {
		return NewClient(profile.Credentials.Azure, endpoints, logger)
	}
}

// Type returns the provider type.
func (c *Client) Type() model.CloudProvider {
	return model.CloudProviderAzure
}

// AccountID confirms the subscription is readable and returns its ID.
func (c *Client) AccountID(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/subscriptions/%s?api-version=%s", c.baseURL, c.subscriptionID, subscriptionAPIVersion)

	var sub struct {
		SubscriptionID string `json:"subscriptionId"`
		DisplayName    string `json:"displayName"`
		State          string `json:"state"`
	}
	if err := c.do(ctx, http.MethodGet, url, nil, &sub); err != nil {
		return "", fmt.Errorf("azure: subscription lookup: %w", err)
	}
	if sub.SubscriptionID == "" {
		return c.subscriptionID, nil
	}
	return sub.SubscriptionID, nil
}

func (c *Client) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("API error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
