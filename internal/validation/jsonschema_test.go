package validation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/scenario/pkg/schema"
)

func newValidator(t *testing.T) *DocumentValidator {
	t.Helper()
	v, err := NewDocumentValidator()
	require.NoError(t, err)
	return v
}

func TestValidate_Step(t *testing.T) {
	v := newValidator(t)
	tests := []struct {
		name  string
		doc   map[string]any
		valid bool
	}{
		{"mapping kwargs", map[string]any{"actor": "bot", "action": "read", "kwargs": map[string]any{"collection": "c"}}, true},
		{"string kwargs", map[string]any{"actor": "bot", "action": "read", "kwargs": `{"collection": "c"}`}, true},
		{"numeric step", map[string]any{"actor": "bot", "action": "read", "kwargs": map[string]any{}, "step": 3}, true},
		{"string step", map[string]any{"actor": "bot", "action": "read", "kwargs": map[string]any{}, "step": "3"}, true},
		{"extra fields allowed", map[string]any{"actor": "bot", "action": "read", "kwargs": map[string]any{}, "note": "x"}, true},
		{"missing kwargs", map[string]any{"actor": "bot", "action": "read"}, false},
		{"empty actor", map[string]any{"actor": "", "action": "read", "kwargs": map[string]any{}}, false},
		{"list kwargs", map[string]any{"actor": "bot", "action": "read", "kwargs": []any{1}}, false},
		{"bad step", map[string]any{"actor": "bot", "action": "read", "kwargs": map[string]any{}, "step": "three"}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(KindStep, "s1", tc.doc)
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))
			assert.Contains(t, err.Error(), `"s1"`)
		})
	}
}

func TestValidate_Process(t *testing.T) {
	v := newValidator(t)
	step := map[string]any{"type": "numeric", "action": "sum", "params": map[string]any{"values": "@xs"}}
	tests := []struct {
		name  string
		doc   map[string]any
		valid bool
	}{
		{"single step", map[string]any{"type": "numeric", "action": "sum", "params": map[string]any{}, "output_key": "total"}, true},
		{"single step without params", map[string]any{"type": "numeric", "action": "sum", "output_key": "total"}, false},
		{"sibling without params", map[string]any{"output_key": "x", "s1": map[string]any{"type": "numeric", "action": "sum"}}, false},
		{"siblings", map[string]any{"output_key": "total", "s1": step, "s2": step}, true},
		{"missing output_key", map[string]any{"type": "numeric", "action": "sum"}, false},
		{"no steps", map[string]any{"output_key": "total"}, false},
		{"unknown type", map[string]any{"type": "binary", "action": "xor", "output_key": "x"}, false},
		{"sibling missing action", map[string]any{"output_key": "x", "s1": map[string]any{"type": "numeric"}}, false},
		{"params not a mapping", map[string]any{"output_key": "x", "s1": map[string]any{"type": "numeric", "action": "sum", "params": "xs"}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(KindProcess, "p", tc.doc)
			if tc.valid {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))
		})
	}
}

func TestValidate_Service(t *testing.T) {
	v := newValidator(t)
	valid := map[string]any{"endpoints": map[string]any{
		"chat": map[string]any{
			"method":      "POST",
			"url":         "https://api.example.com/v1/chat",
			"headers":     map[string]any{"Authorization": "Bearer {{api_key}}"},
			"body_fields": map[string]any{"prompt": "text"},
			"provider":    "openai",
		},
	}}
	assert.NoError(t, v.Validate(KindService, "llm", valid))

	tests := []struct {
		name string
		doc  map[string]any
	}{
		{"no endpoints", map[string]any{}},
		{"empty endpoints", map[string]any{"endpoints": map[string]any{}}},
		{"missing url", map[string]any{"endpoints": map[string]any{"e": map[string]any{"method": "GET"}}}},
		{"bad method", map[string]any{"endpoints": map[string]any{"e": map[string]any{"method": "FETCH", "url": "u"}}}},
		{"bad provider", map[string]any{"endpoints": map[string]any{"e": map[string]any{"method": "GET", "url": "u", "provider": "acme"}}}},
		{"non-string header", map[string]any{"endpoints": map[string]any{"e": map[string]any{"method": "GET", "url": "u", "headers": map[string]any{"X": 1}}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(KindService, "svc", tc.doc)
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))
		})
	}
}

func TestValidate_NilAndUnknownKind(t *testing.T) {
	v := newValidator(t)
	assert.True(t, schema.IsCode(v.Validate(KindStep, "s1", nil), schema.ErrCodeConfig))
	assert.True(t, schema.IsCode(v.Validate("widget", "w", map[string]any{}), schema.ErrCodeValidation))
}

func TestValidate_ViolationDetails(t *testing.T) {
	v := newValidator(t)
	err := v.Validate(KindStep, "s7", map[string]any{"action": 5})
	require.Error(t, err)

	var se *schema.ScenarioError
	require.ErrorAs(t, err, &se)
	violations, ok := se.Details["violations"].([]string)
	require.True(t, ok)
	assert.NotEmpty(t, violations)
	assert.Equal(t, "s7", se.Details["document"])
}

func TestValidate_Concurrent(t *testing.T) {
	v := newValidator(t)
	doc := map[string]any{"actor": "bot", "action": "read", "kwargs": map[string]any{}}

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, v.Validate(KindStep, "s1", doc))
		}()
	}
	wg.Wait()
}
