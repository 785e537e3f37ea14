package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"model_settings/internal/catalog"
	"model_settings/internal/endpoint"
)

// HealthError is returned when a platform's reachability check fails.
type HealthError struct {
	Platform string
	Message  string
	Err      error
}

func (e *HealthError) Error() string {
	return e.Message
}

func (e *HealthError) Unwrap() error {
	return e.Err
}

// CheckHealth issues a GET against the platform's health path. Platforms without one
// always pass.
func (c *Client) CheckHealth(ctx context.Context, platform catalog.LocalPlatform, baseEndpoint string) error {
	if platform.HealthPath == "" {
		return nil
	}

	fail := func(err error) error {
		msg := platform.HealthError
		if msg == "" {
			msg = fmt.Sprintf("%s health check failed.", platform.Name)
		}
		return &HealthError{Platform: platform.ID, Message: msg, Err: err}
	}

	u := endpoint.BaseURL(baseEndpoint) + platform.HealthPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fail(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(fmt.Errorf("health check returned status %d", resp.StatusCode))
	}
	return nil
}
