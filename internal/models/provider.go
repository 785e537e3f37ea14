package models

import "time"

// Provider is a user's persisted model provider with its secrets in plaintext.
// It is the shape served by the provider API.
type Provider struct {
	ID              int64       `json:"id"`
	UserID          string      `json:"-"`
	ProviderName    string      `json:"provider_name"`
	APIKey          string      `json:"api_key"`
	EndpointURL     string      `json:"endpoint_url"`
	IsValid         bool        `json:"is_valid"`
	Prefer          bool        `json:"prefer"`
	ModelType       string      `json:"model_type"`
	EncryptedConfig ExtraConfig `json:"encrypted_config,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// ProviderInput is the body of create and update requests.
type ProviderInput struct {
	ProviderName    string      `json:"provider_name"`
	APIKey          string      `json:"api_key"`
	EndpointURL     string      `json:"endpoint_url"`
	IsValid         bool        `json:"is_valid"`
	ModelType       string      `json:"model_type"`
	EncryptedConfig ExtraConfig `json:"encrypted_config,omitempty"`
}

// ConfigEntry is one user-level configuration value such as a search API key.
type ConfigEntry struct {
	ID          int64     `db:"id" json:"-"`
	UserID      string    `db:"user_id" json:"-"`
	ConfigName  string    `db:"config_name" json:"config_name"`
	ConfigValue string    `db:"config_value" json:"config_value"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
	UpdatedAt   time.Time `db:"updated_at" json:"-"`
}
