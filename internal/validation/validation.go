// Package validation talks to the model validation service that checks a provider
// configuration is reachable and supports tool calling.
package validation

import (
	"encoding/json"
	"strings"
)

// FallbackMessage is used when a failed validation carries no readable message.
const FallbackMessage = "Validation failed. Please check your configuration and try again."

// Request is the body of POST /model/validate.
type Request struct {
	Platform    string            `json:"model_platform"`
	ModelType   string            `json:"model_type"`
	APIKey      string            `json:"api_key"`
	URL         string            `json:"url"`
	ExtraParams map[string]string `json:"extra_params,omitempty"`
}

// Response is the validation service answer. Detail and Error are kept raw because
// their shape differs between validation failures and framework errors.
type Response struct {
	IsValid     bool            `json:"is_valid"`
	IsToolCalls bool            `json:"is_tool_calls"`
	Message     string          `json:"message,omitempty"`
	Detail      json.RawMessage `json:"detail,omitempty"`
	Error       json.RawMessage `json:"error,omitempty"`
}

// Succeeded reports whether the configuration is usable: both flags must hold.
func (r *Response) Succeeded() bool {
	return r != nil && r.IsValid && r.IsToolCalls
}

type messageBody struct {
	Message string `json:"message"`
}

type detailBody struct {
	Message string       `json:"message"`
	Error   *messageBody `json:"error"`
}

// BestMessage picks the most specific message available: message, detail.message,
// detail.error.message, error.message, then FallbackMessage.
func (r *Response) BestMessage() string {
	if r == nil {
		return FallbackMessage
	}
	if msg := strings.TrimSpace(r.Message); msg != "" {
		return msg
	}

	var detail detailBody
	if decodeObject(r.Detail, &detail) {
		if msg := strings.TrimSpace(detail.Message); msg != "" {
			return msg
		}
		if detail.Error != nil {
			if msg := strings.TrimSpace(detail.Error.Message); msg != "" {
				return msg
			}
		}
	}

	var errBody messageBody
	if decodeObject(r.Error, &errBody) {
		if msg := strings.TrimSpace(errBody.Message); msg != "" {
			return msg
		}
	}

	return FallbackMessage
}

// decodeObject unmarshals raw only when it holds a JSON object.
func decodeObject(raw json.RawMessage, v any) bool {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

// RejectedError is returned when validation did not succeed, whatever the cause.
type RejectedError struct {
	Message  string
	Response *Response
	Err      error
}

func (e *RejectedError) Error() string {
	return e.Message
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}
