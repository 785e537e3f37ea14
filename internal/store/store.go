// Package store is the client side of the persisted provider registry.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a provider row does not exist.
var ErrNotFound = errors.New("provider not found")

// Config is the per-provider extra configuration. The server may return non-string
// JSON values; they are kept in their textual form.
type Config map[string]string

func (c *Config) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*c = nil
		return nil
	}
	out := make(Config, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return fmt.Errorf("encrypted_config[%s]: %w", k, err)
			}
			out[k] = string(b)
		}
	}
	*c = out
	return nil
}

// ProviderRow is one persisted provider as returned by GET providers.
type ProviderRow struct {
	ID              int64  `json:"id"`
	ProviderName    string `json:"provider_name"`
	APIKey          string `json:"api_key,omitempty"`
	EndpointURL     string `json:"endpoint_url,omitempty"`
	IsValid         bool   `json:"is_valid"`
	Prefer          bool   `json:"prefer"`
	ModelType       string `json:"model_type"`
	EncryptedConfig Config `json:"encrypted_config,omitempty"`
}

// ProviderData is the body of create and update calls.
type ProviderData struct {
	ProviderName    string `json:"provider_name"`
	APIKey          string `json:"api_key"`
	EndpointURL     string `json:"endpoint_url"`
	IsValid         bool   `json:"is_valid"`
	ModelType       string `json:"model_type"`
	EncryptedConfig Config `json:"encrypted_config,omitempty"`
}

// ConfigEntry is one user-level configuration value.
type ConfigEntry struct {
	ConfigName  string `json:"config_name"`
	ConfigValue string `json:"config_value"`
}

// ProviderStore persists provider configurations.
type ProviderStore interface {
	List(ctx context.Context) ([]ProviderRow, error)
	Create(ctx context.Context, data ProviderData) (*ProviderRow, error)
	Update(ctx context.Context, id int64, data ProviderData) (*ProviderRow, error)
	Delete(ctx context.Context, id int64) error
	// SetPreferred marks exactly one provider preferred; the server clears the others.
	SetPreferred(ctx context.Context, id int64) error
	Configs(ctx context.Context) ([]ConfigEntry, error)
}

// StatusError is a non-2xx answer from the store.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider store returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("provider store returned status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 answers.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == 404
}
