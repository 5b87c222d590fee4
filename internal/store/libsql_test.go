package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/scenario/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

// forEachStore runs the same contract test against every DocumentStore implementation.
func forEachStore(t *testing.T, fn func(t *testing.T, s DocumentStore)) {
	t.Run("libsql", func(t *testing.T) { fn(t, newTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func doc(tag string, contents map[string]any) schema.Document {
	return schema.Document{Tag: tag, Contents: contents}
}

func seedPeople(t *testing.T, s DocumentStore) {
	t.Helper()
	require.NoError(t, s.WriteBatch(context.Background(), "people", []schema.Document{
		doc("ada", map[string]any{"name": "Ada", "age": 36.0, "tags": []any{"math", "poet"}, "address": map[string]any{"city": "London"}}),
		doc("alan", map[string]any{"name": "Alan", "age": 41.0, "tags": []any{"math"}, "address": map[string]any{"city": "Wilmslow"}}),
		doc("grace", map[string]any{"name": "Grace", "age": 85.0, "tags": []any{"navy"}, "active": true}),
	}))
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestWriteAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		ctx := context.Background()
		seedPeople(t, s)

		got, err := s.Get(ctx, "people", "ada")
		require.NoError(t, err)
		assert.Equal(t, "ada", got.Tag)
		assert.Equal(t, "Ada", got.Contents["name"])
		assert.Equal(t, 36.0, got.Contents["age"])
	})
}

func TestGet_NotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		_, err := s.Get(context.Background(), "people", "nobody")
		require.Error(t, err)
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	})
}

func TestWriteBatch_DuplicateTagLeavesStoreUnmodified(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		ctx := context.Background()
		err := s.WriteBatch(ctx, "people", []schema.Document{
			doc("x", map[string]any{"n": 1.0}),
			doc("y", map[string]any{"n": 2.0}),
			doc("x", map[string]any{"n": 3.0}),
		})
		require.Error(t, err)
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

		docs, err := s.Query(ctx, "people", nil, 0)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestWriteBatch_RejectsExistingDocument(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		ctx := context.Background()
		seedPeople(t, s)

		err := s.WriteBatch(ctx, "people", []schema.Document{
			doc("new", map[string]any{"name": "New"}),
			doc("ada", map[string]any{"name": "Impostor"}),
		})
		require.Error(t, err)
		assert.True(t, schema.IsCode(err, schema.ErrCodeConflict))

		got, err := s.Get(ctx, "people", "ada")
		require.NoError(t, err)
		assert.Equal(t, "Ada", got.Contents["name"])

		_, err = s.Get(ctx, "people", "new")
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound), "batch must be atomic")
	})
}

func TestWriteBatch_RequiresTagAndContents(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		ctx := context.Background()
		err := s.WriteBatch(ctx, "people", []schema.Document{doc("", map[string]any{"a": 1.0})})
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

		err = s.WriteBatch(ctx, "people", []schema.Document{doc("empty", nil)})
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

		err = s.WriteBatch(ctx, "people", nil)
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	})
}

func TestQuery_Filters(t *testing.T) {
	tests := []struct {
		name    string
		filters []schema.Filter
		want    []string
	}{
		{"full scan", nil, []string{"ada", "alan", "grace"}},
		{"equal", []schema.Filter{{Field: "name", Op: schema.OpEqual, Value: "Alan"}}, []string{"alan"}},
		{"not equal", []schema.Filter{{Field: "name", Op: schema.OpNotEqual, Value: "Alan"}}, []string{"ada", "grace"}},
		{"greater", []schema.Filter{{Field: "age", Op: schema.OpGreater, Value: 40}}, []string{"alan", "grace"}},
		{"range anded", []schema.Filter{
			{Field: "age", Op: schema.OpGreaterEqual, Value: 36},
			{Field: "age", Op: schema.OpLess, Value: 85},
		}, []string{"ada", "alan"}},
		{"nested field", []schema.Filter{{Field: "address.city", Op: schema.OpEqual, Value: "London"}}, []string{"ada"}},
		{"in", []schema.Filter{{Field: "name", Op: schema.OpIn, Value: []any{"Ada", "Grace"}}}, []string{"ada", "grace"}},
		{"not in", []schema.Filter{{Field: "name", Op: schema.OpNotIn, Value: []any{"Ada", "Grace"}}}, []string{"alan"}},
		{"array contains", []schema.Filter{{Field: "tags", Op: schema.OpArrayContains, Value: "math"}}, []string{"ada", "alan"}},
		{"bool", []schema.Filter{{Field: "active", Op: schema.OpEqual, Value: true}}, []string{"grace"}},
	}

	forEachStore(t, func(t *testing.T, s DocumentStore) {
		seedPeople(t, s)
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				docs, err := s.Query(context.Background(), "people", tc.filters, 0)
				require.NoError(t, err)
				tags := make([]string, len(docs))
				for i, d := range docs {
					tags[i] = d.Tag
				}
				assert.Equal(t, tc.want, tags)
			})
		}
	})
}

func TestQuery_InvalidFilter(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		_, err := s.Query(context.Background(), "people", []schema.Filter{{Field: "age", Op: "~=", Value: 1}}, 0)
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

		_, err = s.Query(context.Background(), "people", []schema.Filter{{Field: "age", Op: schema.OpIn, Value: 1}}, 0)
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	})
}

func TestQuery_Limit(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		seedPeople(t, s)
		docs, err := s.Query(context.Background(), "people", nil, 2)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
}

func TestUpdate_MergesTopLevel(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		ctx := context.Background()
		seedPeople(t, s)

		got, err := s.Update(ctx, "people", "ada", map[string]any{"age": 37.0, "title": "Countess"})
		require.NoError(t, err)
		assert.Equal(t, 37.0, got.Contents["age"])
		assert.Equal(t, "Countess", got.Contents["title"])
		assert.Equal(t, "Ada", got.Contents["name"])

		reread, err := s.Get(ctx, "people", "ada")
		require.NoError(t, err)
		assert.Equal(t, got.Contents, reread.Contents)
	})
}

func TestUpdate_RequiresExistingDocument(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		_, err := s.Update(context.Background(), "people", "ghost", map[string]any{"a": 1.0})
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	})
}

func TestDeleteField(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		ctx := context.Background()
		seedPeople(t, s)

		require.NoError(t, s.DeleteField(ctx, "people", "ada", "address.city"))
		require.NoError(t, s.DeleteField(ctx, "people", "ada", "tags"))
		got, err := s.Get(ctx, "people", "ada")
		require.NoError(t, err)
		assert.NotContains(t, got.Contents, "tags")
		assert.Equal(t, map[string]any{}, got.Contents["address"])

		err = s.DeleteField(ctx, "people", "ada", "tags")
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
		err = s.DeleteField(ctx, "people", "ghost", "tags")
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	})
}

func TestDeleteDocument(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		ctx := context.Background()
		seedPeople(t, s)

		require.NoError(t, s.DeleteDocument(ctx, "people", "alan"))
		_, err := s.Get(ctx, "people", "alan")
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))

		err = s.DeleteDocument(ctx, "people", "alan")
		assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
	})
}

func TestDeleteBatch(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		ctx := context.Background()
		seedPeople(t, s)

		n, err := s.DeleteBatch(ctx, "people", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.DeleteBatch(ctx, "people", 2)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = s.DeleteBatch(ctx, "people", 2)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, err = s.DeleteBatch(ctx, "people", 0)
		assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
	})
}

func TestCollections(t *testing.T) {
	forEachStore(t, func(t *testing.T, s DocumentStore) {
		ctx := context.Background()
		seedPeople(t, s)
		require.NoError(t, s.WriteBatch(ctx, "animals", []schema.Document{doc("cat", map[string]any{"legs": 4.0})}))

		got, err := s.Collections(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"animals", "people"}, got)
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	contents := map[string]any{"nested": map[string]any{"v": 1.0}}
	require.NoError(t, s.WriteBatch(ctx, "c", []schema.Document{doc("d", contents)}))

	contents["nested"].(map[string]any)["v"] = 2.0
	got, err := s.Get(ctx, "c", "d")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Contents["nested"].(map[string]any)["v"])

	got.Contents["nested"] = "mutated"
	again, err := s.Get(ctx, "c", "d")
	require.NoError(t, err)
	assert.IsType(t, map[string]any{}, again.Contents["nested"])
}
