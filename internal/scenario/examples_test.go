package scenario_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/scenario/internal/actions"
	"github.com/rendis/scenario/internal/engine"
	"github.com/rendis/scenario/internal/publisher"
	"github.com/rendis/scenario/internal/scenario"
	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/internal/validation"
	"github.com/rendis/scenario/pkg/schema"
)

type exampleHarness struct {
	store       *store.MemoryStore
	interpreter *engine.Interpreter
}

func newExampleHarness(t *testing.T) *exampleHarness {
	t.Helper()
	st := store.NewMemoryStore()
	v, err := validation.NewDocumentValidator()
	require.NoError(t, err)

	reg := actions.NewRegistry(nil)
	require.NoError(t, actions.RegisterBuiltins(reg, actions.Deps{
		Store:     st,
		Validator: v,
		Publisher: publisher.New(publisher.Config{Retry: publisher.RetryPolicy{MaxAttempts: 1}}, nil),
	}))

	im := scenario.NewImporter(st, v, scenario.Collections{
		Processes: actions.DefaultProcessCollection,
		Services:  actions.DefaultServiceCollection,
	})
	names, err := im.ImportGlob(context.Background(), "../../examples", "*.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"notify", "order-report", "signup"}, names)

	return &exampleHarness{
		store:       st,
		interpreter: engine.NewInterpreter(scenario.NewLoader(st, v, nil), reg, nil),
	}
}

func (h *exampleHarness) run(t *testing.T, name string, input map[string]any) map[string]any {
	t.Helper()
	cache, err := h.interpreter.ExecuteScenario(context.Background(), name, input)
	require.NoError(t, err)
	return cache.Snapshot()
}

func TestExample_ValidateStatically(t *testing.T) {
	for _, name := range []string{"signup", "order-report", "notify"} {
		t.Run(name, func(t *testing.T) {
			f, err := scenario.ReadFile("../../examples/" + name + ".yaml")
			require.NoError(t, err)
			steps := make([]schema.Step, 0, len(f.Steps))
			for _, doc := range f.Documents() {
				step, err := scenario.ParseStep(doc.Tag, doc.Contents)
				require.NoError(t, err)
				steps = append(steps, step)
			}
			report := validation.CheckScenario(f.Name, steps)
			assert.True(t, report.Valid(), report.Lines())
		})
	}
}

func TestExample_Signup(t *testing.T) {
	h := newExampleHarness(t)
	snap := h.run(t, "signup", map[string]any{"email": "ada@example.com", "name": "Ada", "phone": "+100"})

	assert.Equal(t, "ADA", snap["display_name"])
	for i := 1; i <= 4; i++ {
		assert.Equal(t, "success", snap[schema.StatusKey(i)])
	}

	doc, err := h.store.Get(context.Background(), "users", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ADA", doc.Contents["display_name"])
	assert.Equal(t, "success", doc.Contents["stored"])
	assert.Equal(t, "Ada", doc.Contents["name"])
}

func TestExample_OrderReport(t *testing.T) {
	h := newExampleHarness(t)
	snap := h.run(t, "order-report", map[string]any{
		"report_id": "2024-05",
		"orders": []any{
			map[string]any{"document_tag": "o1", "contents": map[string]any{"status": "paid", "total": 40.0}},
			map[string]any{"document_tag": "o2", "contents": map[string]any{"status": "open", "total": 99.0}},
			map[string]any{"document_tag": "o3", "contents": map[string]any{"status": "paid", "total": 2.5}},
		},
	})
	assert.InDelta(t, 42.5, snap["revenue"], 1e-9)
	assert.Len(t, snap["paid"], 2)

	report, err := h.store.Get(context.Background(), "reports", "2024-05")
	require.NoError(t, err)
	assert.InDelta(t, 42.5, report.Contents["revenue"], 1e-9)
}

func TestExample_Notify(t *testing.T) {
	var got struct {
		auth string
		body map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "msg-7", "queued": true}`))
	}))
	defer srv.Close()

	h := newExampleHarness(t)
	h.run(t, "signup", map[string]any{"email": "ada@example.com", "name": "Ada", "phone": "+100"})
	snap := h.run(t, "notify", map[string]any{
		"email":       "ada@example.com",
		"api_key":     "sk-test",
		"gateway_url": srv.URL,
		"message":     "welcome",
	})

	assert.Equal(t, "msg-7", snap["receipt"])
	assert.Equal(t, "Bearer sk-test", got.auth)
	assert.Equal(t, map[string]any{"to": "+100", "message": "welcome"}, got.body)

	doc, err := h.store.Get(context.Background(), "users", "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "msg-7", doc.Contents["notified"])
}
