// Package actions implements the dispatcher that turns a scenario step into a
// store operation, a data manipulation process or an outbound send.
package actions

import (
	"context"

	"github.com/rendis/scenario/pkg/schema"
)

// Handler executes one canonical action with already-resolved kwargs.
type Handler interface {
	Name() schema.Action
	Info() HandlerInfo
	Validate(kwargs map[string]any) error
	Execute(ctx context.Context, step schema.Step, kwargs map[string]any) (any, error)
}

// HandlerInfo describes a handler's kwargs contract for listing.
type HandlerInfo struct {
	Name        schema.Action `json:"name"`
	Description string        `json:"description"`
	Required    []string      `json:"required,omitempty"`
	Optional    []string      `json:"optional,omitempty"`
}

// kwargs wraps a resolved kwargs mapping with typed accessors.
type kwargs map[string]any

func (k kwargs) has(key string) bool {
	v, ok := k[key]
	return ok && v != nil
}

func (k kwargs) requireString(action schema.Action, key string) (string, error) {
	v, ok := k[key]
	if !ok || v == nil {
		return "", missing(action, key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", schema.NewErrorf(schema.ErrCodeValidation, "%s: %q must be a non-empty string, got %T", action, key, v).
			WithDetails(map[string]any{"action": string(action), "kwarg": key})
	}
	return s, nil
}

func (k kwargs) optionalString(action schema.Action, key string) (string, error) {
	if !k.has(key) {
		return "", nil
	}
	return k.requireString(action, key)
}

func (k kwargs) mapping(action schema.Action, key string) (map[string]any, error) {
	v, ok := k[key]
	if !ok || v == nil {
		return nil, missing(action, key)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "%s: %q must be a mapping, got %T", action, key, v).
			WithDetails(map[string]any{"action": string(action), "kwarg": key})
	}
	return m, nil
}

func missing(action schema.Action, key string) *schema.ScenarioError {
	return schema.NewErrorf(schema.ErrCodeValidation, "%s: missing required kwarg %q", action, key).
		WithDetails(map[string]any{"action": string(action), "kwarg": key})
}

// requireKeys is the common Validate body.
func requireKeys(action schema.Action, kw map[string]any, keys ...string) error {
	for _, key := range keys {
		if v, ok := kw[key]; !ok || v == nil {
			return missing(action, key)
		}
	}
	return nil
}
