package catalog

// Local platform identifiers.
const (
	Ollama   = "ollama"
	VLLM     = "vllm"
	SGLang   = "sglang"
	LMStudio = "lmstudio"
	LlamaCpp = "llama.cpp"
)

// CloudID identifies the managed cloud backend.
const CloudID = "cloud"

// NotRequiredKey is sent as the credential for platforms that need none.
const NotRequiredKey = "not-required"

// Option is one allowed value of an enumerated extra-config field.
type Option struct {
	Label string
	Value string
}

// ExternalField describes an extra per-vendor configuration entry.
type ExternalField struct {
	Key     string
	Name    string
	Value   string
	Options []Option
}

// Vendor is a bring-your-own-key provider the user can configure.
type Vendor struct {
	ID             string
	Name           string
	DefaultHost    string
	ExternalConfig []ExternalField
}

// LocalPlatform describes a self-hosted inference server.
type LocalPlatform struct {
	ID              string
	Name            string
	DefaultEndpoint string

	// ModelsPath is the introspection path listing models; empty disables discovery.
	ModelsPath string
	// ModelsKind selects the response shape of ModelsPath.
	ModelsKind ModelsKind
	// DiscoveryError is shown when listing models fails.
	DiscoveryError string

	// HealthPath, when set, replaces the validation call with a reachability check.
	HealthPath string
	// HealthError is reported when the reachability check fails.
	HealthError string
	// AutoFixSuffix enables the one-time "/v1" auto-correction of host-only endpoints.
	AutoFixSuffix bool
}

// ModelsKind enumerates the model listing formats spoken by local servers.
type ModelsKind int

const (
	ModelsNone ModelsKind = iota
	// ModelsOllamaTags is {"models":[{"name":...}]}.
	ModelsOllamaTags
	// ModelsOpenAIList is {"data":[{"id":...}]}.
	ModelsOpenAIList
)

// Discoverable reports whether the platform exposes a model listing.
func (p LocalPlatform) Discoverable() bool {
	return p.ModelsPath != "" && p.ModelsKind != ModelsNone
}

// SkipsValidation reports whether saves use the health check instead of the validation service.
func (p LocalPlatform) SkipsValidation() bool {
	return p.HealthPath != ""
}

// CloudModel is a model offered by the managed cloud backend.
type CloudModel struct {
	ID   string
	Name string
}

var vendors = []Vendor{
	{ID: "openai", Name: "OpenAI", DefaultHost: "https://api.openai.com/v1"},
	{ID: "anthropic", Name: "Anthropic", DefaultHost: "https://api.anthropic.com/v1/"},
	{ID: "gemini", Name: "Gemini", DefaultHost: "https://generativelanguage.googleapis.com/v1beta/openai/"},
	{ID: "openrouter", Name: "OpenRouter", DefaultHost: "https://openrouter.ai/api/v1"},
	{ID: "tongyi-qianwen", Name: "Qwen", DefaultHost: "https://dashscope.aliyuncs.com/compatible-mode/v1"},
	{ID: "deepseek", Name: "Deepseek", DefaultHost: "https://api.deepseek.com"},
	{ID: "minimax", Name: "Minimax", DefaultHost: "https://api.minimax.io/v1"},
	{ID: "z.ai", Name: "Z.ai", DefaultHost: "https://api.z.ai/api/coding/paas/v4/"},
	{ID: "moonshot", Name: "Moonshot", DefaultHost: "https://api.moonshot.ai/v1"},
	{ID: "ModelArk", Name: "ModelArk", DefaultHost: "https://ark.ap-southeast.bytepluses.com/api/v3"},
	{ID: "samba-nova", Name: "SambaNova", DefaultHost: "https://api.sambanova.ai/v1"},
	{ID: "grok", Name: "Grok", DefaultHost: "https://api.x.ai/v1"},
	{ID: "mistral", Name: "Mistral", DefaultHost: "https://api.mistral.ai"},
	{
		ID:          "aws-bedrock",
		Name:        "AWS Bedrock",
		DefaultHost: "",
		ExternalConfig: []ExternalField{
			{
				Key:  "region_name",
				Name: "Region",
				Options: []Option{
					{Label: "us-east-1", Value: "us-east-1"},
					{Label: "us-west-2", Value: "us-west-2"},
					{Label: "eu-central-1", Value: "eu-central-1"},
					{Label: "ap-northeast-1", Value: "ap-northeast-1"},
				},
			},
		},
	},
	{
		ID:          "azure",
		Name:        "Azure",
		DefaultHost: "",
		ExternalConfig: []ExternalField{
			{Key: "api_version", Name: "API Version"},
			{Key: "azure_deployment_name", Name: "Deployment Name"},
		},
	},
	{ID: "openai-compatible-model", Name: "OpenAI Compatible", DefaultHost: ""},
}

var localPlatforms = []LocalPlatform{
	{
		ID:              Ollama,
		Name:            "Ollama",
		DefaultEndpoint: "http://localhost:11434/v1",
		ModelsPath:      "/api/tags",
		ModelsKind:      ModelsOllamaTags,
		DiscoveryError:  "Failed to fetch Ollama models. Is Ollama running?",
		AutoFixSuffix:   true,
	},
	{ID: VLLM, Name: "vLLM"},
	{ID: SGLang, Name: "SGLang"},
	{ID: LMStudio, Name: "LM Studio", DefaultEndpoint: "http://localhost:1234/v1"},
	{
		ID:              LlamaCpp,
		Name:            "LLaMA.cpp",
		DefaultEndpoint: "http://localhost:8080/v1",
		ModelsPath:      "/v1/models",
		ModelsKind:      ModelsOpenAIList,
		DiscoveryError:  "Failed to fetch LLaMA.cpp models. Is llama-server running?",
		HealthPath:      "/v1/health",
		HealthError:     "LLaMA.cpp health check failed. Please confirm llama-server is running and reachable.",
	},
}

var cloudModels = []CloudModel{
	{ID: "gemini-3.1-pro-preview", Name: "Gemini 3.1 Pro Preview"},
	{ID: "gemini-3-pro-preview", Name: "Gemini 3 Pro Preview"},
	{ID: "gemini-3-flash-preview", Name: "Gemini 3 Flash Preview"},
	{ID: "gpt-4.1-mini", Name: "GPT-4.1 Mini"},
	{ID: "gpt-4.1", Name: "GPT-4.1"},
	{ID: "gpt-5", Name: "GPT-5"},
	{ID: "gpt-5.1", Name: "GPT-5.1"},
	{ID: "gpt-5.2", Name: "GPT-5.2"},
	{ID: "gpt-5-mini", Name: "GPT-5 Mini"},
	{ID: "claude-sonnet-4-5", Name: "Claude Sonnet 4-5"},
	{ID: "minimax_m2_5", Name: "Minimax M2.5"},
}

// Vendors returns the BYOK catalog in display order. The result is a deep copy.
func Vendors() []Vendor {
	out := make([]Vendor, len(vendors))
	for i, v := range vendors {
		out[i] = v
		out[i].ExternalConfig = CloneFields(v.ExternalConfig)
	}
	return out
}

// LocalPlatforms returns the supported local runtimes in display order.
func LocalPlatforms() []LocalPlatform {
	out := make([]LocalPlatform, len(localPlatforms))
	copy(out, localPlatforms)
	return out
}

// CloudModels returns the models offered by the cloud backend.
func CloudModels() []CloudModel {
	out := make([]CloudModel, len(cloudModels))
	copy(out, cloudModels)
	return out
}

// VendorByID looks up a BYOK vendor.
func VendorByID(id string) (Vendor, bool) {
	for _, v := range vendors {
		if v.ID == id {
			v.ExternalConfig = CloneFields(v.ExternalConfig)
			return v, true
		}
	}
	return Vendor{}, false
}

// LocalPlatformByID looks up a local platform.
func LocalPlatformByID(id string) (LocalPlatform, bool) {
	for _, p := range localPlatforms {
		if p.ID == id {
			return p, true
		}
	}
	return LocalPlatform{}, false
}

// IsLocalPlatform reports whether id names a local platform.
func IsLocalPlatform(id string) bool {
	_, ok := LocalPlatformByID(id)
	return ok
}

// DefaultEndpoint returns the platform's default endpoint, or "" when it has none.
func DefaultEndpoint(platform string) string {
	p, _ := LocalPlatformByID(platform)
	return p.DefaultEndpoint
}

// CloudModelName returns the display name of a cloud model. Unknown ids are title-cased
// with dashes turned into spaces.
func CloudModelName(id string) string {
	for _, m := range cloudModels {
		if m.ID == id {
			return m.Name
		}
	}
	return titleCase(id)
}

// CloneFields deep-copies extra-config fields.
func CloneFields(fields []ExternalField) []ExternalField {
	if fields == nil {
		return nil
	}
	out := make([]ExternalField, len(fields))
	for i, f := range fields {
		out[i] = f
		if f.Options != nil {
			out[i].Options = append([]Option(nil), f.Options...)
		}
	}
	return out
}

func titleCase(id string) string {
	b := []byte(id)
	start := true
	for i, c := range b {
		if c == '-' {
			b[i] = ' '
			start = true
			continue
		}
		isWord := c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if start && c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		start = !isWord
	}
	return string(b)
}
