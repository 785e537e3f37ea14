package models

import (
	"encoding/json"
	"fmt"
)

// ExtraConfig holds the per-provider settings that do not have a column of their own,
// such as model_platform, an Azure api_version or a Bedrock region. It is stored
// encrypted, so it never reaches the database as plain JSON.
type ExtraConfig map[string]string

// UnmarshalJSON accepts non-string values; numbers, booleans and objects are kept as
// their JSON text and null becomes the empty string.
func (c *ExtraConfig) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*c = nil
		return nil
	}

	out, err := ExtraConfigFromMap(raw)
	if err != nil {
		return err
	}
	*c = out
	return nil
}

// ExtraConfigFromMap converts a decrypted payload into an ExtraConfig.
func ExtraConfigFromMap(raw map[string]any) (ExtraConfig, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(ExtraConfig, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = val
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return nil, fmt.Errorf("encrypted_config[%s]: %w", k, err)
			}
			out[k] = string(b)
		}
	}
	return out, nil
}

// Map returns the payload handed to the encryption layer.
func (c ExtraConfig) Map() map[string]any {
	if len(c) == 0 {
		return nil
	}
	out := make(map[string]any, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}
