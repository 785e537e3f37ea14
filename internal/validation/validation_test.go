package validation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBestMessage_FallbackChain(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"top-level message", `{"message":"bad key","detail":{"message":"ignored"}}`, "bad key"},
		{"detail message", `{"detail":{"message":"model not found"}}`, "model not found"},
		{"detail error message", `{"detail":{"error":{"message":"quota exceeded"}}}`, "quota exceeded"},
		{"error message", `{"error":{"message":"upstream down"}}`, "upstream down"},
		{"string detail is skipped", `{"detail":"Not Found"}`, FallbackMessage},
		{"nothing", `{"is_valid":false}`, FallbackMessage},
		{"blank message", `{"message":"  ","error":{"message":"real"}}`, "real"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp Response
			require.NoError(t, json.Unmarshal([]byte(tt.body), &resp))
			assert.Equal(t, tt.want, resp.BestMessage())
		})
	}
}

func TestSucceeded_RequiresBothFlags(t *testing.T) {
	assert.True(t, (&Response{IsValid: true, IsToolCalls: true}).Succeeded())
	assert.False(t, (&Response{IsValid: true}).Succeeded())
	assert.False(t, (&Response{IsToolCalls: true}).Succeeded())
	assert.False(t, (*Response)(nil).Succeeded())
}

func TestClient_Validate(t *testing.T) {
	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/model/validate", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		switch got.ModelType {
		case "good":
			w.Write([]byte(`{"is_valid":true,"is_tool_calls":true,"message":"ok"}`))
		case "no-tools":
			w.Write([]byte(`{"is_valid":true,"is_tool_calls":false,"message":"model does not support tool calls"}`))
		case "error":
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"detail":{"error":{"message":"invalid api key"}}}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`<html>bad gateway</html>`))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "tok", server.Client())
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		resp, err := client.Validate(ctx, Request{
			Platform:    "azure",
			ModelType:   "good",
			APIKey:      "sk-1",
			URL:         "https://example.com",
			ExtraParams: map[string]string{"api_version": "2024-02-01"},
		})
		require.NoError(t, err)
		assert.True(t, resp.Succeeded())
		assert.Equal(t, "azure", got.Platform)
		assert.Equal(t, "2024-02-01", got.ExtraParams["api_version"])
	})

	t.Run("no tool calls is a rejection", func(t *testing.T) {
		_, err := client.Validate(ctx, Request{Platform: "openai", ModelType: "no-tools"})
		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, "model does not support tool calls", rejected.Message)
	})

	t.Run("error status uses nested message", func(t *testing.T) {
		_, err := client.Validate(ctx, Request{Platform: "openai", ModelType: "error"})
		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, "invalid api key", rejected.Message)
	})

	t.Run("malformed response", func(t *testing.T) {
		_, err := client.Validate(ctx, Request{Platform: "openai", ModelType: "html"})
		var rejected *RejectedError
		require.True(t, errors.As(err, &rejected))
		assert.Equal(t, FallbackMessage, rejected.Message)
	})
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, "", nil).Validate(context.Background(), Request{Platform: "ollama"})
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.NotEmpty(t, rejected.Message)
	assert.NotNil(t, rejected.Err)
}
