package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model_settings/internal/catalog"
	"model_settings/internal/validation"
)

const toolCallCompletion = `{"choices":[{"message":{"role":"assistant","content":null,
	"tool_calls":[{"id":"call_1","type":"function","function":{"name":"get_weather","arguments":"{\"city\":\"Paris\"}"}}]}}]}`

const plainCompletion = `{"choices":[{"message":{"role":"assistant","content":"It is sunny."}}]}`

type capturedRequest struct {
	Path   string
	Query  string
	Auth   string
	APIKey string
	Body   map[string]any
}

func upstream(t *testing.T, status int, body string) (*httptest.Server, *capturedRequest, *int32) {
	t.Helper()
	captured := &capturedRequest{}
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		captured.Path = r.URL.Path
		captured.Query = r.URL.RawQuery
		captured.Auth = r.Header.Get("Authorization")
		captured.APIKey = r.Header.Get("api-key")
		_ = json.NewDecoder(r.Body).Decode(&captured.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured, &hits
}

func newTestProber() *OpenAIProber {
	return NewOpenAIProber(ProbeConfig{Timeout: 5 * time.Second, FailureThreshold: 2, OpenTimeout: time.Minute})
}

func TestProbe_ToolCallSucceeds(t *testing.T) {
	srv, captured, _ := upstream(t, http.StatusOK, toolCallCompletion)

	resp, err := newTestProber().Probe(context.Background(), validation.Request{
		Platform:  "openai",
		ModelType: "gpt-4o",
		APIKey:    "sk-1",
		URL:       srv.URL + "/v1",
	})
	require.NoError(t, err)
	assert.True(t, resp.Succeeded())

	assert.Equal(t, "/v1/chat/completions", captured.Path)
	assert.Equal(t, "Bearer sk-1", captured.Auth)
	assert.Equal(t, "gpt-4o", captured.Body["model"])
	tools, ok := captured.Body["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, 1)
}

func TestProbe_NoToolCall(t *testing.T) {
	srv, _, _ := upstream(t, http.StatusOK, plainCompletion)

	resp, err := newTestProber().Probe(context.Background(), validation.Request{
		Platform: "openai", ModelType: "tiny", APIKey: "sk-1", URL: srv.URL + "/v1",
	})
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
	assert.False(t, resp.IsToolCalls)
	assert.False(t, resp.Succeeded())
	assert.Contains(t, resp.BestMessage(), "did not call the tool")
}

func TestProbe_UpstreamRejection(t *testing.T) {
	srv, _, _ := upstream(t, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)

	resp, err := newTestProber().Probe(context.Background(), validation.Request{
		Platform: "openai", ModelType: "gpt-4o", APIKey: "bad", URL: srv.URL + "/v1",
	})
	require.NoError(t, err)
	assert.False(t, resp.IsValid)
	assert.Equal(t, "Incorrect API key provided", resp.BestMessage())
	assert.NotEmpty(t, resp.Error)
}

func TestProbe_LocalSentinelKeyAndAlias(t *testing.T) {
	srv, captured, _ := upstream(t, http.StatusOK, toolCallCompletion)

	resp, err := newTestProber().Probe(context.Background(), validation.Request{
		Platform:  "llama.cpp",
		ModelType: "qwen",
		APIKey:    catalog.NotRequiredKey,
		URL:       srv.URL + "/v1/",
	})
	require.NoError(t, err)
	assert.True(t, resp.Succeeded())
	assert.Empty(t, captured.Auth)
	assert.Equal(t, "/v1/chat/completions", captured.Path)
}

func TestProbe_HostOnlyURLGetsVersionPath(t *testing.T) {
	srv, captured, _ := upstream(t, http.StatusOK, toolCallCompletion)

	_, err := newTestProber().Probe(context.Background(), validation.Request{
		Platform: "mistral", ModelType: "mistral-large", APIKey: "k", URL: srv.URL,
	})
	require.NoError(t, err)
	assert.Equal(t, "/v1/chat/completions", captured.Path)
}

func TestProbe_Azure(t *testing.T) {
	srv, captured, _ := upstream(t, http.StatusOK, toolCallCompletion)

	resp, err := newTestProber().Probe(context.Background(), validation.Request{
		Platform:  "azure",
		ModelType: "gpt-4o",
		APIKey:    "azure-key",
		URL:       srv.URL,
		ExtraParams: map[string]string{
			"api_version":           "2024-06-01",
			"azure_deployment_name": "prod",
		},
	})
	require.NoError(t, err)
	assert.True(t, resp.Succeeded())
	assert.Equal(t, "/openai/deployments/prod/chat/completions", captured.Path)
	assert.Equal(t, "api-version=2024-06-01", captured.Query)
	assert.Equal(t, "azure-key", captured.APIKey)
	assert.Empty(t, captured.Auth)
}

func TestProbe_InvalidRequests(t *testing.T) {
	prober := newTestProber()
	ctx := context.Background()

	_, err := prober.Probe(ctx, validation.Request{Platform: "openai", URL: "http://x"})
	assert.Error(t, err, "model type is required")

	_, err = prober.Probe(ctx, validation.Request{Platform: "openai-compatible-model", ModelType: "m"})
	assert.Error(t, err, "no url and no default host")

	_, err = prober.Probe(ctx, validation.Request{Platform: "azure", ModelType: "m", URL: "https://x.openai.azure.com"})
	assert.Error(t, err, "azure needs its extra params")

	_, err = prober.Probe(ctx, validation.Request{Platform: "openai", ModelType: "m", URL: "not a url"})
	assert.Error(t, err)
}

func TestProbe_CircuitOpensPerHost(t *testing.T) {
	failing, _, failingHits := upstream(t, http.StatusBadGateway, `{"error":"bad gateway"}`)
	healthy, _, _ := upstream(t, http.StatusOK, toolCallCompletion)

	prober := newTestProber()
	ctx := context.Background()
	req := validation.Request{Platform: "openai", ModelType: "m", APIKey: "k", URL: failing.URL + "/v1"}

	for i := 0; i < 2; i++ {
		resp, err := prober.Probe(ctx, req)
		require.NoError(t, err)
		assert.False(t, resp.IsValid)
		assert.Contains(t, resp.BestMessage(), "502")
	}

	resp, err := prober.Probe(ctx, req)
	require.NoError(t, err)
	assert.False(t, resp.IsValid)
	assert.Equal(t, int32(2), atomic.LoadInt32(failingHits), "open circuit short-circuits the upstream")

	resp, err = prober.Probe(ctx, validation.Request{Platform: "openai", ModelType: "m", APIKey: "k", URL: healthy.URL + "/v1"})
	require.NoError(t, err)
	assert.True(t, resp.Succeeded(), "other hosts are unaffected")
}

func TestResolveTarget_Defaults(t *testing.T) {
	tgt, err := resolveTarget(validation.Request{Platform: "anthropic", ModelType: "claude"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.anthropic.com/v1/chat/completions", tgt.url)

	tgt, err = resolveTarget(validation.Request{
		Platform:    "aws-bedrock",
		ExtraParams: map[string]string{"region_name": "us-west-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://bedrock-runtime.us-west-2.amazonaws.com/openai/v1/chat/completions", tgt.url)
	assert.Equal(t, "bedrock-runtime.us-west-2.amazonaws.com", tgt.host)
}

func TestUpstreamMessage(t *testing.T) {
	assert.Equal(t, "nested", upstreamMessage([]byte(`{"error":{"message":"nested"}}`), 400))
	assert.Equal(t, "flat", upstreamMessage([]byte(`{"error":"flat"}`), 400))
	assert.Equal(t, "top", upstreamMessage([]byte(`{"message":"top"}`), 400))
	assert.Equal(t, "plain text", upstreamMessage([]byte(`plain text`), 400))
	assert.Equal(t, "upstream returned status 418", upstreamMessage(nil, 418))
}
