// Package resolve rewrites step parameters, replacing reference expressions
// with values taken from the execution cache or from caller inputs.
//
// Two prefixes are recognized on string values:
//
//	$a.b.c   cache reference, looked up as a dot path in the cache
//	@key     input reference, looked up directly in inputs, then as inputs.<key>
//
// A doubled prefix ($$, @@) escapes a literal string. Maps and slices are
// walked recursively; every other value passes through unchanged.
package resolve

import (
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/rendis/scenario/pkg/schema"
)

const (
	CachePrefix = "$"
	InputPrefix = "@"
)

// Resolve returns a copy of value with every reference replaced. Resolution is
// fail-fast: the first unresolved reference aborts with a REFERENCE_ERROR
// naming the full reference.
func Resolve(value any, cache, inputs map[string]any) (any, error) {
	switch v := value.(type) {
	case string:
		return resolveString(v, cache, inputs)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			r, err := Resolve(item, cache, inputs)
			if err != nil {
				return nil, err
			}
			out[k] = r
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			r, err := Resolve(item, cache, inputs)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return value, nil
	}
}

// ResolveMap is Resolve for a kwargs mapping.
func ResolveMap(kwargs, cache, inputs map[string]any) (map[string]any, error) {
	if kwargs == nil {
		return map[string]any{}, nil
	}
	out, err := Resolve(kwargs, cache, inputs)
	if err != nil {
		return nil, err
	}
	return out.(map[string]any), nil
}

func resolveString(s string, cache, inputs map[string]any) (any, error) {
	switch {
	case strings.HasPrefix(s, CachePrefix+CachePrefix), strings.HasPrefix(s, InputPrefix+InputPrefix):
		return s[1:], nil
	case strings.HasPrefix(s, CachePrefix) && len(s) > 1:
		return Lookup(cache, s[1:], s)
	case strings.HasPrefix(s, InputPrefix) && len(s) > 1:
		return LookupInput(inputs, s[1:], s)
	default:
		return s, nil
	}
}

// LookupInput resolves an input key: first as a direct key of inputs, then as
// a dot path under inputs["inputs"]. Both call conventions are supported so a
// process can be invoked with flat inputs or with nested step kwargs.
func LookupInput(inputs map[string]any, key, ref string) (any, error) {
	if v, ok := inputs[key]; ok {
		return v, nil
	}
	nested, ok := inputs["inputs"].(map[string]any)
	if !ok {
		return nil, notFound(ref, key, "inputs", lo.Keys(inputs))
	}
	return Lookup(nested, key, ref)
}

// Lookup walks a dot-delimited path through nested maps (and, for numeric
// segments, slices). ref is the expression reported on failure.
func Lookup(root map[string]any, path, ref string) (any, error) {
	if path == "" {
		return nil, schema.NewErrorf(schema.ErrCodeReference, "empty reference %q", ref).
			WithDetails(map[string]any{"reference": ref})
	}

	var current any = root
	for i, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, schema.NewErrorf(schema.ErrCodeReference,
				"empty segment at position %d in reference %q", i, ref).
				WithDetails(map[string]any{"reference": ref})
		}

		switch v := current.(type) {
		case map[string]any:
			val, ok := v[seg]
			if !ok {
				return nil, notFound(ref, seg, path, lo.Keys(v))
			}
			current = val
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, schema.NewErrorf(schema.ErrCodeReference,
					"reference %q not found: index %q out of range for list of %d", ref, seg, len(v)).
					WithDetails(map[string]any{"reference": ref, "segment": seg})
			}
			current = v[idx]
		default:
			return nil, schema.NewErrorf(schema.ErrCodeReference,
				"reference %q not found: cannot index %T with %q", ref, current, seg).
				WithDetails(map[string]any{"reference": ref, "segment": seg})
		}
	}
	return current, nil
}

func notFound(ref, seg, path string, available []string) *schema.ScenarioError {
	sort.Strings(available)
	return schema.NewErrorf(schema.ErrCodeReference,
		"reference %q not found: missing %q in %q; available: [%s]", ref, seg, path, strings.Join(available, ", ")).
		WithDetails(map[string]any{"reference": ref, "segment": seg, "available": available})
}

// Roots returns the first path segment of every cache reference inside value,
// sorted and deduplicated. Used to check references before execution.
func Roots(value any) []string {
	var roots []string
	var walk func(any)
	walk = func(v any) {
		switch val := v.(type) {
		case string:
			if strings.HasPrefix(val, CachePrefix) && !strings.HasPrefix(val, CachePrefix+CachePrefix) && len(val) > 1 {
				root, _, _ := strings.Cut(val[1:], ".")
				roots = append(roots, root)
			}
		case map[string]any:
			for _, item := range val {
				walk(item)
			}
		case []any:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(value)
	roots = lo.Uniq(roots)
	sort.Strings(roots)
	return roots
}
