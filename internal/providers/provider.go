// Package providers checks a provider configuration against its upstream: it sends one
// OpenAI-style chat completion carrying a tool definition and reports whether the model
// answered and whether it called the tool.
package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"model_settings/internal/catalog"
	"model_settings/internal/validation"
)

// Prober validates a provider configuration. Upstream rejections are reported in the
// response, not as errors; an error means the request itself was unusable.
type Prober interface {
	Probe(ctx context.Context, req validation.Request) (*validation.Response, error)
}

// Authenticator applies credentials to an upstream request.
type Authenticator interface {
	Apply(req *http.Request)
}

// apiKeyAuth sets one header to prefix+key. An empty or sentinel key sends nothing.
type apiKeyAuth struct {
	header string
	prefix string
	key    string
}

func NewAPIKeyAuth(key, header, prefix string) Authenticator {
	return &apiKeyAuth{header: header, prefix: prefix, key: key}
}

func (a *apiKeyAuth) Apply(req *http.Request) {
	if a.key == "" || a.key == catalog.NotRequiredKey {
		return
	}
	req.Header.Set(a.header, a.prefix+a.key)
}

// target is the resolved upstream call for a probe.
type target struct {
	url  string
	host string
	auth Authenticator
}

const (
	azurePlatform   = "azure"
	bedrockPlatform = "aws-bedrock"
)

// resolveTarget builds the chat completions URL and credentials for req.
// Platform aliases are normalized first.
func resolveTarget(req validation.Request) (*target, error) {
	platform := catalog.NormalizePlatform(req.Platform)

	base := strings.TrimSpace(req.URL)
	if base == "" {
		if vendor, ok := catalog.VendorByID(platform); ok {
			base = vendor.DefaultHost
		}
		if platform == bedrockPlatform && req.ExtraParams["region_name"] != "" {
			base = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com/openai/v1", req.ExtraParams["region_name"])
		}
	}
	if base == "" {
		return nil, fmt.Errorf("url is required for platform %q", req.Platform)
	}

	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", base)
	}

	if platform == azurePlatform {
		deployment := req.ExtraParams["azure_deployment_name"]
		version := req.ExtraParams["api_version"]
		if deployment == "" || version == "" {
			return nil, fmt.Errorf("azure requires api_version and azure_deployment_name")
		}
		u.Path = strings.TrimRight(u.Path, "/") + "/openai/deployments/" + url.PathEscape(deployment) + "/chat/completions"
		u.RawQuery = url.Values{"api-version": {version}}.Encode()
		return &target{url: u.String(), host: u.Host, auth: NewAPIKeyAuth(req.APIKey, "api-key", "")}, nil
	}

	path := strings.TrimRight(u.Path, "/")
	if path == "" {
		path = "/v1"
	}
	u.Path = path + "/chat/completions"
	return &target{url: u.String(), host: u.Host, auth: NewAPIKeyAuth(req.APIKey, "Authorization", "Bearer ")}, nil
}
