package store

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/samber/lo"

	"github.com/rendis/scenario/pkg/schema"
)

func validateFilters(filters []schema.Filter) error {
	for _, f := range filters {
		if !f.Valid() {
			return schema.NewErrorf(schema.ErrCodeValidation, "invalid filter (%q %q %v)", f.Field, f.Op, f.Value).
				WithDetails(map[string]any{"field": f.Field, "op": string(f.Op)})
		}
		if f.Op == schema.OpIn || f.Op == schema.OpNotIn {
			if _, ok := f.Value.([]any); !ok {
				return schema.NewErrorf(schema.ErrCodeValidation, "filter %q %s requires a list value", f.Field, f.Op)
			}
		}
	}
	return nil
}

// matchAll reports whether contents satisfies every filter.
func matchAll(contents map[string]any, filters []schema.Filter) bool {
	for _, f := range filters {
		if !match(contents, f) {
			return false
		}
	}
	return true
}

func match(contents map[string]any, f schema.Filter) bool {
	got, ok := lookupField(contents, f.Field)
	switch f.Op {
	case schema.OpEqual:
		return ok && equal(got, f.Value)
	case schema.OpNotEqual:
		return !ok || !equal(got, f.Value)
	case schema.OpLess, schema.OpLessEqual, schema.OpGreater, schema.OpGreaterEqual:
		if !ok {
			return false
		}
		c, comparable := compare(got, f.Value)
		if !comparable {
			return false
		}
		switch f.Op {
		case schema.OpLess:
			return c < 0
		case schema.OpLessEqual:
			return c <= 0
		case schema.OpGreater:
			return c > 0
		default:
			return c >= 0
		}
	case schema.OpIn:
		list, _ := f.Value.([]any)
		return ok && lo.ContainsBy(list, func(v any) bool { return equal(got, v) })
	case schema.OpNotIn:
		list, _ := f.Value.([]any)
		return !ok || !lo.ContainsBy(list, func(v any) bool { return equal(got, v) })
	case schema.OpArrayContains:
		list, isList := got.([]any)
		return ok && isList && lo.ContainsBy(list, func(v any) bool { return equal(v, f.Value) })
	}
	return false
}

func equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two numbers or two strings.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		}
		return 0, true
	}
	sa, ok := a.(string)
	if !ok {
		return 0, false
	}
	sb, ok := b.(string)
	if !ok {
		return 0, false
	}
	return strings.Compare(sa, sb), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// sqlClause renders one filter as a WHERE fragment over the contents column.
// Field paths are bound as parameters, never concatenated into the query.
func sqlClause(f schema.Filter) (string, []any) {
	path := fieldPath(f.Field)
	extract := "json_extract(contents, ?)"
	switch f.Op {
	case schema.OpIn, schema.OpNotIn:
		list, _ := f.Value.([]any)
		if len(list) == 0 {
			if f.Op == schema.OpIn {
				return "0", nil
			}
			return "1", nil
		}
		args := append([]any{path}, lo.Map(list, func(v any, _ int) any { return sqlValue(v) })...)
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(list)), ", ")
		if f.Op == schema.OpIn {
			return extract + " IN (" + marks + ")", args
		}
		return "(" + extract + " IS NULL OR " + extract + " NOT IN (" + marks + "))", append([]any{path}, args...)
	case schema.OpArrayContains:
		return "EXISTS (SELECT 1 FROM json_each(contents, ?) WHERE json_each.value = ?)", []any{path, sqlValue(f.Value)}
	case schema.OpNotEqual:
		return "(" + extract + " IS NULL OR " + extract + " != ?)", []any{path, path, sqlValue(f.Value)}
	default:
		return extract + " " + string(f.Op) + " ?", []any{path, sqlValue(f.Value)}
	}
}

// sqlValue maps a filter value onto what json_extract yields for the same JSON.
func sqlValue(v any) any {
	switch val := v.(type) {
	case bool:
		if val {
			return 1
		}
		return 0
	case map[string]any, []any:
		b, _ := json.Marshal(val)
		return string(b)
	}
	return v
}
