package catalog

// OpenAICompatiblePlatform is the validation platform used for vendors that speak the
// OpenAI chat protocol under another name.
const OpenAICompatiblePlatform = "openai-compatible-model"

var platformAliases = map[string]string{
	"z.ai":      OpenAICompatiblePlatform,
	"ModelArk":  OpenAICompatiblePlatform,
	"grok":      OpenAICompatiblePlatform,
	"llama.cpp": OpenAICompatiblePlatform,
	"llama-cpp": OpenAICompatiblePlatform,
	"llamacpp":  OpenAICompatiblePlatform,
}

// NormalizePlatform maps provider aliases to the platform name the validation backend
// understands. Unknown names are returned unchanged.
func NormalizePlatform(platform string) string {
	if normalized, ok := platformAliases[platform]; ok {
		return normalized
	}
	return platform
}

// NormalizeOptionalPlatform is NormalizePlatform for optional values.
func NormalizeOptionalPlatform(platform *string) *string {
	if platform == nil {
		return nil
	}
	normalized := NormalizePlatform(*platform)
	return &normalized
}
