package publisher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/scenario/pkg/schema"
)

func TestRender_ProjectsFields(t *testing.T) {
	tpl := schema.ServiceTemplate{
		Method:      "post",
		URL:         "https://api.example.com/v1/{{ .data.channel | lower }}/send",
		Headers:     map[string]string{"X-Api-Key": "{{api_key}}"},
		QueryFields: map[string]string{"to": "recipient"},
		BodyFields:  map[string]string{"message": "text", "priority": "level"},
	}
	data := map[string]any{"channel": "SMS", "recipient": "+100", "text": "hello", "level": 2}

	req, body, err := Render(tpl, data, "k-123")
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "https://api.example.com/v1/sms/send", req.URL)
	assert.Equal(t, "k-123", req.Headers["X-Api-Key"])
	assert.Equal(t, map[string]string{"to": "+100"}, req.Query)
	assert.Equal(t, map[string]any{"message": "hello", "priority": 2}, body)
}

func TestRender_CustomPlaceholder(t *testing.T) {
	tpl := schema.ServiceTemplate{
		Method:            "GET",
		URL:               "https://api.example.com/items?key=__KEY__",
		APIKeyPlaceholder: "__KEY__",
	}
	req, body, err := Render(tpl, map[string]any{"ignored": true}, "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/items?key=abc", req.URL)
	assert.Nil(t, body, "GET without body fields has no body")
}

func TestRender_WholeDataIsBody(t *testing.T) {
	data := map[string]any{"a": 1, "b": "x"}
	_, body, err := Render(schema.ServiceTemplate{Method: "PUT", URL: "https://h/x"}, data, "")
	require.NoError(t, err)
	assert.Equal(t, data, body)
}

func TestRender_MissingDataField(t *testing.T) {
	tpl := schema.ServiceTemplate{
		Method:     "POST",
		URL:        "https://h/x",
		BodyFields: map[string]string{"message": "text"},
	}
	_, _, err := Render(tpl, map[string]any{}, "")
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	assert.Contains(t, err.Error(), `"text"`)
}

func TestRender_RequiresMethodAndURL(t *testing.T) {
	_, _, err := Render(schema.ServiceTemplate{URL: "https://h"}, nil, "")
	assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))

	_, _, err = Render(schema.ServiceTemplate{Method: "GET"}, nil, "")
	assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))
}

func TestRender_BadTemplate(t *testing.T) {
	_, _, err := Render(schema.ServiceTemplate{Method: "GET", URL: "https://h/{{ .data.x "}, nil, "")
	assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))
}

func TestRender_ProviderReshape(t *testing.T) {
	tpl := schema.ServiceTemplate{
		Method:     "POST",
		URL:        "https://h/chat",
		BodyFields: map[string]string{"text": "prompt", "model": "model"},
		Provider:   "anthropic",
	}
	_, body, err := Render(tpl, map[string]any{"prompt": "summarize", "model": "m-1"}, "")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"model":      "m-1",
		"max_tokens": anthropicDefaultMaxTokens,
		"messages":   []any{map[string]any{"role": "user", "content": "summarize"}},
	}, body)
}

func TestReshape(t *testing.T) {
	body := map[string]any{"text": "hi", "model": "x"}

	openai, err := Reshape("openai", body)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"model":    "x",
		"messages": []any{map[string]any{"role": "user", "content": "hi"}},
	}, openai)

	gemini, err := Reshape("gemini", body)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"model":    "x",
		"contents": []any{map[string]any{"parts": []any{map[string]any{"text": "hi"}}}},
	}, gemini)

	unchanged, err := Reshape("openai", map[string]any{"prompt": "p"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"prompt": "p"}, unchanged)

	_, err = Reshape("mystery", body)
	assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))
}
