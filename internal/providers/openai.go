package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"

	"model_settings/internal/logging"
	"model_settings/internal/validation"
)

const (
	probeTimeout     = 60 * time.Second
	maxResponseBytes = 1 << 20
	probePrompt      = "What is the weather like in Paris right now? Use the get_weather tool."
)

var probeTool = map[string]any{
	"type": "function",
	"function": map[string]any{
		"name":        "get_weather",
		"description": "Get the current weather for a city",
		"parameters": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"city": map[string]any{"type": "string", "description": "City name"},
			},
			"required": []string{"city"},
		},
	},
}

// ProbeConfig tunes the upstream client
type ProbeConfig struct {
	Timeout       time.Duration
	MaxConcurrent int
	// FailureThreshold consecutive upstream failures open a host's circuit
	FailureThreshold int
	// OpenTimeout is how long an open circuit rejects calls before probing again
	OpenTimeout time.Duration
	HTTPClient  *http.Client
}

// DefaultProbeConfig returns production defaults
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Timeout:          probeTimeout,
		MaxConcurrent:    16,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// upstreamError is an upstream failure that counts against the host's circuit
type upstreamError struct {
	status  int
	message string
}

func (e *upstreamError) Error() string {
	if e.status == 0 {
		return e.message
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.status, e.message)
}

// OpenAIProber probes OpenAI-compatible chat completion endpoints
type OpenAIProber struct {
	cfg      ProbeConfig
	client   *http.Client
	bulkhead bulkhead.Bulkhead[*validation.Response]

	mu       sync.Mutex
	breakers map[string]circuitbreaker.CircuitBreaker[*validation.Response]
}

// NewOpenAIProber creates a prober. Zero fields of cfg take defaults.
func NewOpenAIProber(cfg ProbeConfig) *OpenAIProber {
	def := DefaultProbeConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &OpenAIProber{
		cfg:    cfg,
		client: client,
		bulkhead: bulkhead.New[*validation.Response](bulkhead.Config{
			MaxConcurrent: cfg.MaxConcurrent,
			MaxQueue:      cfg.MaxConcurrent * 4,
			QueueTimeout:  cfg.Timeout,
		}),
		breakers: make(map[string]circuitbreaker.CircuitBreaker[*validation.Response]),
	}
}

func (p *OpenAIProber) breaker(host string) circuitbreaker.CircuitBreaker[*validation.Response] {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cb, ok := p.breakers[host]; ok {
		return cb
	}
	threshold := p.cfg.FailureThreshold
	cb := circuitbreaker.New[*validation.Response](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     p.cfg.OpenTimeout,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return int(counts.ConsecutiveFailures) >= threshold
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			logging.Warningf("validation circuit for %s: %s -> %s", host, from.String(), to.String())
		},
	})
	p.breakers[host] = cb
	return cb
}

// Probe sends one tool-enabled chat completion. Success needs a choice with tool_calls.
func (p *OpenAIProber) Probe(ctx context.Context, req validation.Request) (*validation.Response, error) {
	if strings.TrimSpace(req.ModelType) == "" {
		return nil, errors.New("model_type is required")
	}
	t, err := resolveTarget(req)
	if err != nil {
		return nil, err
	}

	resp, err := p.bulkhead.Execute(ctx, func(ctx context.Context) (*validation.Response, error) {
		return p.breaker(t.host).Execute(ctx, func(ctx context.Context) (*validation.Response, error) {
			return p.call(ctx, t, req.ModelType)
		})
	})
	if err != nil {
		var upstream *upstreamError
		if errors.As(err, &upstream) {
			return failed(upstream.Error()), nil
		}
		logging.Warningf("validation of %s at %s failed: %v", req.ModelType, t.host, err)
		return failed(fmt.Sprintf("Could not reach %s: %v", t.host, err)), nil
	}
	return resp, nil
}

func failed(message string) *validation.Response {
	return &validation.Response{Message: message}
}

// call returns a response for answers that describe the configuration, including 4xx
// rejections, and an error for failures of the upstream itself.
func (p *OpenAIProber) call(ctx context.Context, t *target, model string) (*validation.Response, error) {
	body, err := json.Marshal(map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": probePrompt},
		},
		"tools":       []any{probeTool},
		"tool_choice": "auto",
		"max_tokens":  256,
		"stream":      false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	t.auth.Apply(httpReq)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &upstreamError{message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &upstreamError{status: resp.StatusCode, message: fmt.Sprintf("failed to read response: %v", err)}
	}
	logging.Debugf("validation probe %s model=%s status=%d latency=%s", t.host, model, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, &upstreamError{status: resp.StatusCode, message: upstreamMessage(respBody, resp.StatusCode)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		out := failed(upstreamMessage(respBody, resp.StatusCode))
		if raw := errorObject(respBody); raw != nil {
			out.Error = raw
		}
		return out, nil
	}

	return interpretCompletion(respBody), nil
}

type completion struct {
	Choices []struct {
		Message struct {
			Content   *string           `json:"content"`
			ToolCalls []json.RawMessage `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

func interpretCompletion(body []byte) *validation.Response {
	var c completion
	if err := json.Unmarshal(body, &c); err != nil {
		return failed("Upstream returned a malformed chat completion")
	}
	if len(c.Choices) == 0 {
		return failed("Upstream returned no choices")
	}

	out := &validation.Response{IsValid: true}
	if len(c.Choices[0].Message.ToolCalls) > 0 {
		out.IsToolCalls = true
		out.Message = "Model is reachable and supports tool calling"
		return out
	}
	out.Message = "Model responded but did not call the tool. Tool calling support is required."
	return out
}

// upstreamMessage extracts error.message, a string error, or message from an upstream body
func upstreamMessage(body []byte, status int) string {
	var parsed struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(parsed.Error, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
		var flat string
		if json.Unmarshal(parsed.Error, &flat) == nil && flat != "" {
			return flat
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) <= 200 {
		return text
	}
	return fmt.Sprintf("upstream returned status %d", status)
}

// errorObject returns the upstream "error" member when it is an object
func errorObject(body []byte) json.RawMessage {
	var parsed struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return nil
	}
	trimmed := bytes.TrimSpace(parsed.Error)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	return parsed.Error
}
