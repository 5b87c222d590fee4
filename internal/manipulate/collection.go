package manipulate

import (
	"context"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/samber/lo"

	"github.com/rendis/scenario/internal/expressions"
	"github.com/rendis/scenario/pkg/schema"
)

var collectionOps = map[string]operation{
	"filter":   filterItems,
	"map":      mapItems,
	"reduce":   reduceItems,
	"sort":     sortItems,
	"find":     findItem,
	"index_of": indexOf,
	"flatten":  flattenItems,
	"unique":   uniqueItems,
	"length":   collectionLength,
	"reverse":  reverseItems,
	"query":    queryItems,
}

func items(action string, p params) ([]any, error) {
	raw, ok := p.values()
	if !ok {
		return nil, invalid(schema.TypeCollection, action, "values is required")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, invalid(schema.TypeCollection, action, "values must be a list, got %T", raw)
	}
	return list, nil
}

func requireParam(action string, p params, key string) (string, error) {
	s := p.string(key, "")
	if s == "" {
		return "", invalid(schema.TypeCollection, action, "%s is required", key)
	}
	return s, nil
}

func itemVars(p params, item any, index int) map[string]any {
	return map[string]any{
		expressions.VarItem:   item,
		expressions.VarIndex:  index,
		expressions.VarInputs: p[expressions.VarInputs],
	}
}

// filterItems keeps items whose CEL "condition" holds.
func filterItems(ctx context.Context, e *Engine, action string, p params) (any, error) {
	list, err := items(action, p)
	if err != nil {
		return nil, err
	}
	cond, err := requireParam(action, p, "condition")
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(list))
	for i, item := range list {
		ok, err := e.exprs.CEL.Predicate(ctx, cond, itemVars(p, item, i))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, item)
		}
	}
	return out, nil
}

// findItem returns the first item matching the CEL "condition", or nil.
func findItem(ctx context.Context, e *Engine, action string, p params) (any, error) {
	list, err := items(action, p)
	if err != nil {
		return nil, err
	}
	cond, err := requireParam(action, p, "condition")
	if err != nil {
		return nil, err
	}
	for i, item := range list {
		ok, err := e.exprs.CEL.Predicate(ctx, cond, itemVars(p, item, i))
		if err != nil {
			return nil, err
		}
		if ok {
			return item, nil
		}
	}
	return nil, nil
}

// mapItems evaluates the Expr "expression" for every item.
func mapItems(ctx context.Context, e *Engine, action string, p params) (any, error) {
	list, err := items(action, p)
	if err != nil {
		return nil, err
	}
	expression, err := requireParam(action, p, "expression")
	if err != nil {
		return nil, err
	}
	out := make([]any, len(list))
	for i, item := range list {
		v, err := e.exprs.Expr.Evaluate(ctx, expression, itemVars(p, item, i))
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// reduceItems folds with the Expr "expression" over acc and item. Without
// "initial" the first item seeds the accumulator.
func reduceItems(ctx context.Context, e *Engine, action string, p params) (any, error) {
	list, err := items(action, p)
	if err != nil {
		return nil, err
	}
	expression, err := requireParam(action, p, "expression")
	if err != nil {
		return nil, err
	}
	acc, start := p["initial"], 0
	if !p.has("initial") {
		if len(list) == 0 {
			return nil, invalid(schema.TypeCollection, action, "reduce of empty list with no initial value")
		}
		acc, start = list[0], 1
	}
	for i := start; i < len(list); i++ {
		vars := itemVars(p, list[i], i)
		vars[expressions.VarAcc] = acc
		if acc, err = e.exprs.Expr.Evaluate(ctx, expression, vars); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// sortItems orders by the jq "key" selector (the item itself when absent).
// Keys must be all numbers or all strings.
func sortItems(ctx context.Context, e *Engine, action string, p params) (any, error) {
	list, err := items(action, p)
	if err != nil {
		return nil, err
	}
	keyExpr := p.string("key", "")
	keys := make([]any, len(list))
	for i, item := range list {
		if keyExpr == "" {
			keys[i] = item
			continue
		}
		if keys[i], err = e.exprs.JQ.Query(ctx, keyExpr, item); err != nil {
			return nil, err
		}
	}

	idx := lo.Range(len(list))
	var cmpErr error
	sort.SliceStable(idx, func(a, b int) bool {
		c, err := compareKeys(keys[idx[a]], keys[idx[b]])
		if err != nil && cmpErr == nil {
			cmpErr = err
		}
		return c < 0
	})
	if cmpErr != nil {
		return nil, invalid(schema.TypeCollection, action, "%v", cmpErr)
	}

	out := lo.Map(idx, func(i int, _ int) any { return list[i] })
	if p.bool("reverse", false) {
		out = lo.Reverse(out)
	}
	return out, nil
}

func compareKeys(a, b any) (int, error) {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, fmt.Errorf("cannot compare string with %T", b)
		}
		switch {
		case as < bs:
			return -1, nil
		case as > bs:
			return 1, nil
		}
		return 0, nil
	}
	af, err := toFloat(a)
	if err != nil {
		return 0, fmt.Errorf("unsortable key: %v", err)
	}
	if _, isStr := b.(string); isStr {
		return 0, fmt.Errorf("cannot compare %T with string", a)
	}
	bf, err := toFloat(b)
	if err != nil {
		return 0, fmt.Errorf("unsortable key: %v", err)
	}
	switch {
	case af < bf:
		return -1, nil
	case af > bf:
		return 1, nil
	}
	return 0, nil
}

// indexOf returns the position of the first item equal to "target", or -1.
func indexOf(_ context.Context, _ *Engine, action string, p params) (any, error) {
	list, err := items(action, p)
	if err != nil {
		return nil, err
	}
	if !p.has("target") {
		return nil, invalid(schema.TypeCollection, action, "target is required")
	}
	target := canonical(p["target"])
	_, idx, found := lo.FindIndexOf(list, func(item any) bool { return canonical(item) == target })
	if !found {
		return -1, nil
	}
	return idx, nil
}

// flattenItems removes every level of list nesting. Order is preserved and
// already-flat lists come back unchanged.
func flattenItems(_ context.Context, _ *Engine, action string, p params) (any, error) {
	list, err := items(action, p)
	if err != nil {
		return nil, err
	}
	return flatten(list), nil
}

func flatten(list []any) []any {
	out := make([]any, 0, len(list))
	for _, item := range list {
		if nested, ok := item.([]any); ok {
			out = append(out, flatten(nested)...)
			continue
		}
		out = append(out, item)
	}
	return out
}

// uniqueItems drops repeated items, keeping first occurrences in order.
func uniqueItems(_ context.Context, _ *Engine, action string, p params) (any, error) {
	list, err := items(action, p)
	if err != nil {
		return nil, err
	}
	return lo.UniqBy(list, canonical), nil
}

func collectionLength(_ context.Context, _ *Engine, action string, p params) (any, error) {
	list, err := items(action, p)
	if err != nil {
		return nil, err
	}
	return len(list), nil
}

func reverseItems(_ context.Context, _ *Engine, action string, p params) (any, error) {
	list, err := items(action, p)
	if err != nil {
		return nil, err
	}
	out := append([]any(nil), list...)
	return lo.Reverse(out), nil
}

// queryItems runs the jq "query" over the whole list.
func queryItems(ctx context.Context, e *Engine, action string, p params) (any, error) {
	list, err := items(action, p)
	if err != nil {
		return nil, err
	}
	query, err := requireParam(action, p, "query")
	if err != nil {
		return nil, err
	}
	return e.exprs.JQ.Query(ctx, query, list)
}

// canonical renders a value as JSON so equal values compare equal
// regardless of numeric type.
func canonical(v any) string {
	if f, err := toFloat(v); err == nil {
		if _, isStr := v.(string); !isStr {
			if _, isBool := v.(bool); !isBool {
				v = f
			}
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(b)
}
