package manipulate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rendis/scenario/pkg/schema"
)

// params wraps resolved operation parameters with typed accessors.
type params map[string]any

func (p params) has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p params) string(key, defaultVal string) string {
	v, ok := p[key]
	if !ok {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

func (p params) bool(key string, defaultVal bool) bool {
	v, ok := p[key]
	if !ok {
		return defaultVal
	}
	b, ok := v.(bool)
	if !ok {
		return defaultVal
	}
	return b
}

func (p params) int(key string, defaultVal int) int {
	v, ok := p[key]
	if !ok {
		return defaultVal
	}
	n, err := toInt(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// args returns the positional argument list; a scalar becomes a one-element list.
func (p params) args() []any {
	v, ok := p["args"]
	if !ok || v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

// values returns the operation input, accepting either "values" or "value".
func (p params) values() (any, bool) {
	if v, ok := p["values"]; ok {
		return v, true
	}
	v, ok := p["value"]
	return v, ok
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("%q is not numeric", n)
		}
		return f, nil
	}
	return 0, fmt.Errorf("%T is not numeric", v)
}

func toInt(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%v is not an integer", v)
	}
	return int(f), nil
}

// toText renders a scalar as a string; maps and lists are rejected.
func toText(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", fmt.Errorf("value is null")
	case map[string]any, []any:
		return "", fmt.Errorf("%T is not a scalar", v)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	}
	return fmt.Sprint(v), nil
}

func invalid(typ schema.OperationType, action, format string, args ...any) *schema.ScenarioError {
	return schema.NewErrorf(schema.ErrCodeValidation, "%s.%s: %s", typ, action, fmt.Sprintf(format, args...)).
		WithDetails(map[string]any{"type": string(typ), "action": action})
}
