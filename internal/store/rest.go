package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"

	"model_settings/internal/logging"
)

// RESTConfig configures the REST provider store client.
type RESTConfig struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	// MaxAttempts bounds retries of idempotent reads (default 3).
	MaxAttempts  int
	InitialDelay time.Duration
}

// RESTStore implements ProviderStore against the provider REST API.
type RESTStore struct {
	baseURL    string
	token      string
	httpClient *http.Client
	reads      retry.Retry[[]byte]
}

// NewRESTStore creates a REST store client.
func NewRESTStore(cfg RESTConfig) *RESTStore {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 200 * time.Millisecond
	}

	return &RESTStore{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: cfg.HTTPClient,
		reads: retry.New[[]byte](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      5 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		}),
	}
}

// isRetryable retries network failures, 429 and 5xx answers.
func isRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (s *RESTStore) List(ctx context.Context) ([]ProviderRow, error) {
	body, err := s.get(ctx, "/api/providers")
	if err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	var rows []ProviderRow
	if err := decodeList(body, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode providers: %w", err)
	}
	return rows, nil
}

func (s *RESTStore) Create(ctx context.Context, data ProviderData) (*ProviderRow, error) {
	body, err := s.send(ctx, http.MethodPost, "/api/provider", data)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}
	return decodeRow(body)
}

func (s *RESTStore) Update(ctx context.Context, id int64, data ProviderData) (*ProviderRow, error) {
	body, err := s.send(ctx, http.MethodPut, fmt.Sprintf("/api/provider/%d", id), data)
	if err != nil {
		return nil, fmt.Errorf("failed to update provider %d: %w", id, err)
	}
	return decodeRow(body)
}

func (s *RESTStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.send(ctx, http.MethodDelete, fmt.Sprintf("/api/provider/%d", id), nil); err != nil {
		return fmt.Errorf("failed to delete provider %d: %w", id, err)
	}
	return nil
}

func (s *RESTStore) SetPreferred(ctx context.Context, id int64) error {
	payload := map[string]int64{"provider_id": id}
	if _, err := s.send(ctx, http.MethodPost, "/api/provider/prefer", payload); err != nil {
		return fmt.Errorf("failed to prefer provider %d: %w", id, err)
	}
	return nil
}

func (s *RESTStore) Configs(ctx context.Context) ([]ConfigEntry, error) {
	body, err := s.get(ctx, "/api/configs")
	if err != nil {
		return nil, fmt.Errorf("failed to read configs: %w", err)
	}
	var entries []ConfigEntry
	if err := decodeList(body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode configs: %w", err)
	}
	return entries, nil
}

func (s *RESTStore) get(ctx context.Context, path string) ([]byte, error) {
	return s.reads.Do(ctx, func(ctx context.Context) ([]byte, error) {
		return s.do(ctx, http.MethodGet, path, nil)
	})
}

// send performs a mutation. Mutations are never retried.
func (s *RESTStore) send(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	return s.do(ctx, method, path, body)
}

func (s *RESTStore) do(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.Debugf("%s %s -> %d", method, path, resp.StatusCode)
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	return data, nil
}

// decodeList accepts either a bare JSON array or an {"items": [...]} envelope.
func decodeList(data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] == '[' {
		return json.Unmarshal(trimmed, out)
	}

	var envelope struct {
		Items json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return err
	}
	if len(envelope.Items) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Items, out)
}

func decodeRow(data []byte) (*ProviderRow, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var row ProviderRow
	if err := json.Unmarshal(data, &row); err != nil {
		return nil, fmt.Errorf("failed to decode provider: %w", err)
	}
	return &row, nil
}

func errorMessage(data []byte) string {
	var body struct {
		Error  string `json:"error"`
		Detail any    `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if s, ok := body.Detail.(string); ok {
			return s
		}
	}
	return strings.TrimSpace(string(data))
}
