package expressions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/scenario/pkg/schema"
)

func newCEL(t *testing.T) *CELEngine {
	t.Helper()
	e, err := NewCELEngine()
	require.NoError(t, err)
	return e
}

func TestNewCELEngine(t *testing.T) {
	e := newCEL(t)
	assert.Equal(t, "cel", e.Name())
}

func TestCEL_ItemPredicate(t *testing.T) {
	e := newCEL(t)
	tests := []struct {
		expr string
		vars map[string]any
		want bool
	}{
		{"item > 2.0", map[string]any{"item": 3.0}, true},
		{"item > 2", map[string]any{"item": 1.5}, false},
		{`item.name == "ada"`, map[string]any{"item": map[string]any{"name": "ada"}}, true},
		{`item.startsWith("a")`, map[string]any{"item": "abc"}, true},
		{"index % 2 == 0", map[string]any{"index": 4}, true},
		{`inputs.min <= item`, map[string]any{"item": 5.0, "inputs": map[string]any{"min": 3.0}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := e.Predicate(context.Background(), tc.expr, tc.vars)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestCEL_NonBoolPredicate(t *testing.T) {
	e := newCEL(t)
	_, err := e.Predicate(context.Background(), "1 + 2", nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestCEL_CompileError(t *testing.T) {
	e := newCEL(t)
	_, err := e.Evaluate(context.Background(), "item >", nil)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestCEL_EmptyExpression(t *testing.T) {
	e := newCEL(t)
	_, err := e.Evaluate(context.Background(), "", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestCEL_RuntimeError(t *testing.T) {
	e := newCEL(t)
	_, err := e.Evaluate(context.Background(), "item.missing == 1", map[string]any{"item": map[string]any{}})
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExecution))
}

func TestCEL_ConcurrentEvaluation(t *testing.T) {
	e := newCEL(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, err := e.Predicate(context.Background(), "item >= 10.0", map[string]any{"item": float64(i)})
			assert.NoError(t, err)
			assert.Equal(t, i >= 10, got)
		}(i)
	}
	wg.Wait()
}
