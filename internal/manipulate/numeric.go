package manipulate

import (
	"context"
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/rendis/scenario/pkg/schema"
)

var numericOps = map[string]operation{
	"sum":     reduceNumbers(sum, true),
	"mean":    reduceNumbers(mean, false),
	"average": reduceNumbers(mean, false),
	"median":  reduceNumbers(median, false),
	"std":     reduceNumbers(func(xs []float64) float64 { return math.Sqrt(variance(xs)) }, false),
	"var":     reduceNumbers(variance, false),
	"min":     reduceNumbers(func(xs []float64) float64 { return lo.Min(xs) }, false),
	"max":     reduceNumbers(func(xs []float64) float64 { return lo.Max(xs) }, false),
	"product": reduceNumbers(product, true),
	"prod":    reduceNumbers(product, true),
	"count":   countNumbers,
	"abs":     mapNumbers(func(x float64, _ params) float64 { return math.Abs(x) }),
	"round":   mapNumbers(roundHalfEven),
	"cumsum":  cumsum,
}

// numbers flattens the step input into a float slice. Numeric strings are
// accepted; anything else is a validation error.
func numbers(action string, p params) ([]float64, bool, error) {
	raw, ok := p.values()
	if !ok {
		return nil, false, invalid(schema.TypeNumeric, action, "values is required")
	}
	_, isList := raw.([]any)

	var out []float64
	var walk func(v any) error
	walk = func(v any) error {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				if err := walk(item); err != nil {
					return err
				}
			}
			return nil
		}
		f, err := toFloat(v)
		if err != nil {
			return invalid(schema.TypeNumeric, action, "%v", err)
		}
		out = append(out, f)
		return nil
	}
	if err := walk(raw); err != nil {
		return nil, false, err
	}
	return out, isList, nil
}

func reduceNumbers(fn func([]float64) float64, emptyOK bool) operation {
	return func(_ context.Context, _ *Engine, action string, p params) (any, error) {
		xs, _, err := numbers(action, p)
		if err != nil {
			return nil, err
		}
		if len(xs) == 0 && !emptyOK {
			return nil, invalid(schema.TypeNumeric, action, "values is empty")
		}
		return fn(xs), nil
	}
}

// mapNumbers applies fn element-wise. A scalar input yields a scalar.
func mapNumbers(fn func(float64, params) float64) operation {
	return func(_ context.Context, _ *Engine, action string, p params) (any, error) {
		xs, isList, err := numbers(action, p)
		if err != nil {
			return nil, err
		}
		if !isList && len(xs) == 1 {
			return fn(xs[0], p), nil
		}
		return lo.Map(xs, func(x float64, _ int) any { return fn(x, p) }), nil
	}
}

func countNumbers(_ context.Context, _ *Engine, action string, p params) (any, error) {
	xs, _, err := numbers(action, p)
	if err != nil {
		return nil, err
	}
	return len(xs), nil
}

func cumsum(_ context.Context, _ *Engine, action string, p params) (any, error) {
	xs, _, err := numbers(action, p)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(xs))
	var total float64
	for i, x := range xs {
		total += x
		out[i] = total
	}
	return out, nil
}

func sum(xs []float64) float64 {
	return lo.Sum(xs)
}

func product(xs []float64) float64 {
	return lo.Reduce(xs, func(acc, x float64, _ int) float64 { return acc * x }, 1)
}

func mean(xs []float64) float64 {
	return sum(xs) / float64(len(xs))
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// variance is the population variance.
func variance(xs []float64) float64 {
	m := mean(xs)
	var acc float64
	for _, x := range xs {
		d := x - m
		acc += d * d
	}
	return acc / float64(len(xs))
}

// roundHalfEven rounds to the "decimals" param (default 0) with ties to even.
func roundHalfEven(x float64, p params) float64 {
	decimals := p.int("decimals", 0)
	if len(p.args()) > 0 {
		if n, err := toInt(p.args()[0]); err == nil {
			decimals = n
		}
	}
	scale := math.Pow(10, float64(decimals))
	return math.RoundToEven(x*scale) / scale
}
