package engine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/scenario/pkg/schema"
)

func TestNewCache_SeedsInput(t *testing.T) {
	c := NewCache(map[string]any{"user": "ada"})
	v, ok := c.Get(schema.InputKey)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"user": "ada"}, v)

	empty := NewCache(nil)
	v, ok = empty.Get(schema.InputKey)
	require.True(t, ok)
	assert.Equal(t, map[string]any{}, v)
}

func TestCache_Lifecycle(t *testing.T) {
	c := NewCache(nil)
	assert.Equal(t, StatePending, c.State(1))

	require.NoError(t, c.Begin(1))
	assert.Equal(t, StateRunning, c.State(1))
	require.NoError(t, c.MarkSuccess(1))

	require.NoError(t, c.Begin(2))
	require.NoError(t, c.MarkError(2, "boom"))

	snap := c.Snapshot()
	assert.Equal(t, schema.StatusSuccess, snap["step_1_status"])
	assert.Equal(t, schema.StatusError, snap["step_2_status"])
	assert.Equal(t, "boom", snap["step_2_error"])
	assert.NotContains(t, snap, "step_1_error")
}

func TestCache_GuardRejectsSecondStatus(t *testing.T) {
	tests := []struct {
		name string
		run  func(c *Cache) error
	}{
		{"success twice", func(c *Cache) error {
			_ = c.Begin(1)
			_ = c.MarkSuccess(1)
			return c.MarkSuccess(1)
		}},
		{"error after success", func(c *Cache) error {
			_ = c.Begin(1)
			_ = c.MarkSuccess(1)
			return c.MarkError(1, "late")
		}},
		{"status without begin", func(c *Cache) error { return c.MarkSuccess(1) }},
		{"begin twice", func(c *Cache) error {
			_ = c.Begin(1)
			return c.Begin(1)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run(NewCache(nil))
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeExecution))
		})
	}
}

func TestCache_SnapshotIsACopy(t *testing.T) {
	c := NewCache(nil)
	c.Set("a", 1)
	snap := c.Snapshot()
	snap["a"] = 2
	snap["b"] = 3

	v, _ := c.Get("a")
	assert.Equal(t, 1, v)
	_, ok := c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCache_ConcurrentReaders(t *testing.T) {
	c := NewCache(nil)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Set("k", i)
		}()
		go func() {
			defer wg.Done()
			_ = c.Snapshot()
		}()
	}
	wg.Wait()
	_, ok := c.Get("k")
	assert.True(t, ok)
}
