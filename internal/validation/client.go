package validation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"model_settings/internal/logging"
)

// Validator checks a provider configuration.
type Validator interface {
	Validate(ctx context.Context, req Request) (*Response, error)
}

// Client calls POST {baseURL}/model/validate.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a validation client. Validation probes a remote model, so the
// default timeout is generous.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Validate returns the service response when both is_valid and is_tool_calls hold.
// Every other outcome, transport failures included, is a *RejectedError.
func (c *Client) Validate(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &RejectedError{Message: FallbackMessage, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/model/validate", bytes.NewReader(body))
	if err != nil {
		return nil, &RejectedError{Message: FallbackMessage, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logging.Warningf("validation request for %s failed: %v", req.Platform, err)
		return nil, &RejectedError{Message: transportMessage(err), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RejectedError{Message: FallbackMessage, Err: err}
	}

	var result Response
	if err := json.Unmarshal(raw, &result); err != nil {
		logging.Warningf("validation response for %s is malformed (status %d): %v", req.Platform, resp.StatusCode, err)
		return nil, &RejectedError{
			Message: FallbackMessage,
			Err:     fmt.Errorf("malformed validation response (status %d): %w", resp.StatusCode, err),
		}
	}

	if !result.Succeeded() {
		return &result, &RejectedError{
			Message:  result.BestMessage(),
			Response: &result,
			Err:      fmt.Errorf("validation rejected (status %d)", resp.StatusCode),
		}
	}
	return &result, nil
}

func transportMessage(err error) string {
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return FallbackMessage
}
