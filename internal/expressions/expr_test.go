package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/scenario/pkg/schema"
)

func TestExpr_Name(t *testing.T) {
	assert.Equal(t, "expr", NewExprEngine().Name())
}

func TestExpr_ValueExpressions(t *testing.T) {
	e := NewExprEngine()
	tests := []struct {
		name string
		expr string
		vars map[string]any
		want any
	}{
		{"arithmetic", "item * 2", map[string]any{"item": 3.0}, 6.0},
		{"accumulate", "acc + item", map[string]any{"acc": 10.0, "item": 5.0}, 15.0},
		{"field", "item.price * item.qty", map[string]any{"item": map[string]any{"price": 2.5, "qty": 4.0}}, 10.0},
		{"string", `upper(item) + "!"`, map[string]any{"item": "hi"}, "HI!"},
		{"nil coalescing", `item?.missing ?? "none"`, map[string]any{"item": map[string]any{}}, "none"},
		{"index", "index + 1", map[string]any{"index": 2}, 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Evaluate(context.Background(), tc.expr, tc.vars)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExpr_SameProgramDifferentShapes(t *testing.T) {
	e := NewExprEngine()
	got, err := e.Evaluate(context.Background(), "item", map[string]any{"item": 1.0})
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)

	got, err = e.Evaluate(context.Background(), "item", map[string]any{"item": "text"})
	require.NoError(t, err)
	assert.Equal(t, "text", got)
}

func TestExpr_Errors(t *testing.T) {
	e := NewExprEngine()

	_, err := e.Evaluate(context.Background(), "", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(context.Background(), "item +", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(context.Background(), "item.x.y", map[string]any{"item": 3.0})
	assert.True(t, schema.IsCode(err, schema.ErrCodeExecution))
}

func TestExpr_UnsetVariablesAreBound(t *testing.T) {
	e := NewExprEngine()

	got, err := e.Evaluate(context.Background(), "(acc ?? 0) + item", map[string]any{"item": 4.0})
	require.NoError(t, err)
	assert.Equal(t, 4.0, got)

	got, err = e.Evaluate(context.Background(), `inputs.rate * item`, map[string]any{
		"item":   2.0,
		"inputs": map[string]any{"rate": 1.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 3.0, got)

	got, err = e.Evaluate(context.Background(), "index", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}
