package publisher

import (
	"github.com/rendis/scenario/pkg/schema"
)

const anthropicDefaultMaxTokens = 1024

// Providers lists the supported payload reshapers.
var Providers = []string{"openai", "gemini", "anthropic"}

// Reshape wraps the free-text "text" field of body into the structure the
// provider expects. Bodies without a "text" field pass through unchanged.
func Reshape(provider string, body map[string]any) (map[string]any, error) {
	text, ok := body["text"]
	if !ok {
		return body, nil
	}
	out := make(map[string]any, len(body)+1)
	for k, v := range body {
		if k != "text" {
			out[k] = v
		}
	}

	switch provider {
	case "openai":
		out["messages"] = []any{userMessage(text)}
	case "anthropic":
		out["messages"] = []any{userMessage(text)}
		if _, ok := out["max_tokens"]; !ok {
			out["max_tokens"] = anthropicDefaultMaxTokens
		}
	case "gemini":
		out["contents"] = []any{
			map[string]any{"parts": []any{map[string]any{"text": text}}},
		}
	default:
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "unknown provider %q", provider).
			WithDetails(map[string]any{"provider": provider, "supported": Providers})
	}
	return out, nil
}

func userMessage(text any) map[string]any {
	return map[string]any{"role": "user", "content": text}
}
