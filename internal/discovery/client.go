// Package discovery lists the models served by local inference servers.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"model_settings/internal/catalog"
	"model_settings/internal/endpoint"
	"model_settings/internal/logging"
)

const discoveryTimeout = 10 * time.Second

// Result is the outcome of one discovery call. Error is a platform-scoped message and
// Models is empty whenever Error is set.
type Result struct {
	Models []string
	Error  string
}

// Client queries introspection and health endpoints of local servers.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a discovery client. A nil httpClient gets a default with short timeouts.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = newDiscoveryHTTPClient()
	}
	return &Client{httpClient: httpClient}
}

func newDiscoveryHTTPClient() *http.Client {
	return &http.Client{
		Timeout: discoveryTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Discover lists the platform's models. It never fails: transport errors and non-2xx
// answers become an empty list plus the platform's discovery error message.
func (c *Client) Discover(ctx context.Context, platform catalog.LocalPlatform, baseEndpoint string) Result {
	models, err := c.ListModels(ctx, platform, baseEndpoint)
	if err != nil {
		logging.Warningf("model discovery for %s failed: %v", platform.ID, err)
		msg := platform.DiscoveryError
		if msg == "" {
			msg = fmt.Sprintf("Failed to fetch %s models.", platform.Name)
		}
		return Result{Models: []string{}, Error: msg}
	}
	return Result{Models: models}
}

// ListModels fetches the model identifiers exposed by the platform at baseEndpoint.
// An empty endpoint falls back to the platform default.
func (c *Client) ListModels(ctx context.Context, platform catalog.LocalPlatform, baseEndpoint string) ([]string, error) {
	if !platform.Discoverable() {
		return nil, fmt.Errorf("platform %s does not support model discovery", platform.ID)
	}
	if baseEndpoint == "" {
		baseEndpoint = platform.DefaultEndpoint
	}
	if baseEndpoint == "" {
		return nil, fmt.Errorf("no endpoint configured for %s", platform.ID)
	}

	u := endpoint.BaseURL(baseEndpoint) + platform.ModelsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("model listing returned status %d", resp.StatusCode)
	}

	switch platform.ModelsKind {
	case catalog.ModelsOllamaTags:
		return decodeOllamaTags(resp.Body)
	case catalog.ModelsOpenAIList:
		return decodeOpenAIModels(resp.Body)
	default:
		return nil, fmt.Errorf("unsupported model listing format for %s", platform.ID)
	}
}

func decodeOllamaTags(r io.Reader) ([]string, error) {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(r).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	models := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

func decodeOpenAIModels(r io.Reader) ([]string, error) {
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	models := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	return models, nil
}
