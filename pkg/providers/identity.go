package providers

import "strings"

// InferProviderFromModel infers a provider label from a model identifier.
// Used for log fields only, never for routing.
func InferProviderFromModel(model string) string {
	m := strings.TrimSpace(strings.ToLower(model))
	switch {
	case m == "":
		return "unknown"
	case strings.Contains(m, "claude"):
		return "anthropic"
	case strings.Contains(m, "gpt") || strings.Contains(m, "o1") || strings.Contains(m, "o3") || strings.Contains(m, "o4"):
		return "openai"
	case strings.Contains(m, "whisper"):
		return "openai"
	default:
		return "unknown"
	}
}
