package store

import (
	"fmt"
	"strings"

	"github.com/rendis/scenario/pkg/schema"
)

// checkBatch enforces the write contract that can be checked without the store:
// every document needs a non-empty tag and contents, and tags are unique in the batch.
func checkBatch(collection string, docs []schema.Document) error {
	if collection == "" {
		return schema.NewError(schema.ErrCodeValidation, "collection is required")
	}
	if len(docs) == 0 {
		return schema.NewError(schema.ErrCodeValidation, "write batch is empty")
	}
	seen := make(map[string]struct{}, len(docs))
	for i, d := range docs {
		if d.Tag == "" {
			return schema.NewErrorf(schema.ErrCodeValidation, "document %d has an empty document_tag", i)
		}
		if len(d.Contents) == 0 {
			return schema.NewErrorf(schema.ErrCodeValidation, "document %q has no contents", d.Tag)
		}
		if _, dup := seen[d.Tag]; dup {
			return schema.NewErrorf(schema.ErrCodeValidation, "duplicate document_tag %q in batch", d.Tag).
				WithDetails(map[string]any{"collection": collection, "document_tag": d.Tag})
		}
		seen[d.Tag] = struct{}{}
	}
	return nil
}

func notFound(collection, tag string) *schema.ScenarioError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "document %q not found in collection %q", tag, collection).
		WithDetails(map[string]any{"collection": collection, "document_tag": tag})
}

func alreadyExists(collection, tag string) *schema.ScenarioError {
	return schema.NewErrorf(schema.ErrCodeConflict, "document %q already exists in collection %q", tag, collection).
		WithDetails(map[string]any{"collection": collection, "document_tag": tag})
}

// mergeTop copies partial's top-level fields over base, returning a new map.
func mergeTop(base, partial map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(partial))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = deepCopy(v)
	}
	return out
}

// removeField deletes a dot-delimited field. It reports whether the field existed.
func removeField(contents map[string]any, field string) bool {
	segments := strings.Split(field, ".")
	current := contents
	for _, seg := range segments[:len(segments)-1] {
		next, ok := current[seg].(map[string]any)
		if !ok {
			return false
		}
		current = next
	}
	last := segments[len(segments)-1]
	if _, ok := current[last]; !ok {
		return false
	}
	delete(current, last)
	return true
}

// lookupField returns the value at a dot-delimited field path.
func lookupField(contents map[string]any, field string) (any, bool) {
	var current any = contents
	for _, seg := range strings.Split(field, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func fieldPath(field string) string {
	return fmt.Sprintf("$.%s", field)
}
