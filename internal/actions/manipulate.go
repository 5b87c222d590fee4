package actions

import (
	"context"
	"log/slog"

	"github.com/rendis/scenario/internal/manipulate"
	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/internal/validation"
	"github.com/rendis/scenario/pkg/schema"
)

type manipulateHandler struct {
	store      store.DocumentStore
	validator  *validation.DocumentValidator
	engine     *manipulate.Engine
	collection string
	logger     *slog.Logger
}

func (h *manipulateHandler) Name() schema.Action { return schema.ActionManipulate }

func (h *manipulateHandler) Info() HandlerInfo {
	return HandlerInfo{
		Name:        schema.ActionManipulate,
		Description: "Run a stored data manipulation process; other kwargs are its inputs",
		Required:    []string{"process"},
		Optional:    []string{"inputs"},
	}
}

func (h *manipulateHandler) Validate(kw map[string]any) error {
	return requireKeys(schema.ActionManipulate, kw, "process")
}

// Execute loads the named process and returns the value under its output key.
func (h *manipulateHandler) Execute(ctx context.Context, _ schema.Step, kw map[string]any) (any, error) {
	name, err := kwargs(kw).requireString(schema.ActionManipulate, "process")
	if err != nil {
		return nil, err
	}
	def, err := h.load(ctx, name)
	if err != nil {
		return nil, err
	}

	inputs := make(map[string]any, len(kw))
	for k, v := range kw {
		if k != "process" {
			inputs[k] = v
		}
	}

	cache, err := h.engine.RunProcess(ctx, def, inputs)
	if err != nil {
		return nil, err
	}
	h.logger.DebugContext(ctx, "process completed",
		slog.String("process", name),
		slog.Int("steps", len(def.Steps)),
	)
	return manipulate.Output(def, cache)
}

func (h *manipulateHandler) load(ctx context.Context, name string) (*schema.ProcessDefinition, error) {
	doc, err := loadDefinition(ctx, h.store, h.collection, "process", name)
	if err != nil {
		return nil, err
	}
	if h.validator != nil {
		if err := h.validator.Validate(validation.KindProcess, name, doc.Contents); err != nil {
			return nil, err
		}
	}
	return manipulate.ParseProcess(name, doc.Contents)
}

// loadDefinition fetches a stored definition. A missing one is a
// configuration problem, not a data one.
func loadDefinition(ctx context.Context, st store.DocumentStore, collection, kind, name string) (*schema.Document, error) {
	doc, err := st.Get(ctx, collection, name)
	if err != nil {
		if schema.IsCode(err, schema.ErrCodeNotFound) {
			return nil, schema.NewErrorf(schema.ErrCodeConfig, "%s %q not found in collection %q", kind, name, collection).
				WithDetails(map[string]any{kind: name, "collection": collection}).
				WithCause(err)
		}
		return nil, err
	}
	return doc, nil
}
