package actions

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/pkg/schema"
)

// DefaultDeleteBatchSize bounds each round of a full-collection delete.
const DefaultDeleteBatchSize = 100

// --- read ---

type readHandler struct{ store store.DocumentStore }

func (h *readHandler) Name() schema.Action { return schema.ActionRead }

func (h *readHandler) Info() HandlerInfo {
	return HandlerInfo{
		Name:        schema.ActionRead,
		Description: "Read one document by tag, or every document matching filters",
		Required:    []string{"collection"},
		Optional:    []string{"document_tag", "filters", "limit"},
	}
}

func (h *readHandler) Validate(kw map[string]any) error {
	return requireKeys(schema.ActionRead, kw, "collection")
}

// Execute returns a list of {document_tag, contents}. A document_tag takes
// precedence over filters.
func (h *readHandler) Execute(ctx context.Context, _ schema.Step, kw map[string]any) (any, error) {
	k := kwargs(kw)
	collection, err := k.requireString(schema.ActionRead, "collection")
	if err != nil {
		return nil, err
	}
	tag, err := k.optionalString(schema.ActionRead, "document_tag")
	if err != nil {
		return nil, err
	}
	if tag != "" {
		doc, err := h.store.Get(ctx, collection, tag)
		if schema.IsCode(err, schema.ErrCodeNotFound) {
			return []any{}, nil
		}
		if err != nil {
			return nil, err
		}
		return []any{doc.ToMap()}, nil
	}

	filters, err := ParseFilters(kw["filters"])
	if err != nil {
		return nil, err
	}
	limit := 0
	if k.has("limit") {
		n, ok := asInt(kw["limit"])
		if !ok || n < 0 {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "read: limit must be a non-negative integer, got %v", kw["limit"])
		}
		limit = n
	}

	docs, err := h.store.Query(ctx, collection, filters, limit)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(docs))
	for i, d := range docs {
		out[i] = d.ToMap()
	}
	return out, nil
}

// ParseFilters accepts [[field, op, value], ...] or [{field, op, value}, ...].
func ParseFilters(v any) ([]schema.Filter, error) {
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "filters must be a list, got %T", v)
	}
	filters := make([]schema.Filter, 0, len(list))
	for i, item := range list {
		var f schema.Filter
		switch t := item.(type) {
		case []any:
			if len(t) != 3 {
				return nil, schema.NewErrorf(schema.ErrCodeValidation, "filter %d must have 3 elements, got %d", i, len(t))
			}
			field, _ := t[0].(string)
			op, _ := t[1].(string)
			f = schema.Filter{Field: field, Op: schema.FilterOp(op), Value: t[2]}
		case map[string]any:
			if err := mapstructure.Decode(t, &f); err != nil {
				return nil, schema.NewErrorf(schema.ErrCodeValidation, "filter %d: %v", i, err).WithCause(err)
			}
		default:
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "filter %d must be a list or mapping, got %T", i, item)
		}
		if !f.Valid() {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "filter %d: invalid field %q or operator %q", i, f.Field, f.Op).
				WithDetails(map[string]any{"index": i, "field": f.Field, "op": string(f.Op)})
		}
		filters = append(filters, f)
	}
	return filters, nil
}

// --- write ---

type writeHandler struct{ store store.DocumentStore }

func (h *writeHandler) Name() schema.Action { return schema.ActionWrite }

func (h *writeHandler) Info() HandlerInfo {
	return HandlerInfo{
		Name:        schema.ActionWrite,
		Description: "Write new documents; fails if any tag is duplicated or already stored",
		Required:    []string{"collection"},
		Optional:    []string{"documents", "document"},
	}
}

func (h *writeHandler) Validate(kw map[string]any) error {
	if err := requireKeys(schema.ActionWrite, kw, "collection"); err != nil {
		return err
	}
	k := kwargs(kw)
	if !k.has("documents") && !k.has("document") {
		return missing(schema.ActionWrite, "documents")
	}
	return nil
}

// Execute writes the batch atomically and returns the written tags.
func (h *writeHandler) Execute(ctx context.Context, _ schema.Step, kw map[string]any) (any, error) {
	k := kwargs(kw)
	collection, err := k.requireString(schema.ActionWrite, "collection")
	if err != nil {
		return nil, err
	}

	var raw []any
	if k.has("documents") {
		list, ok := kw["documents"].([]any)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "write: documents must be a list, got %T", kw["documents"])
		}
		raw = list
	} else {
		raw = []any{kw["document"]}
	}
	if len(raw) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "write: documents is empty")
	}

	docs := make([]schema.Document, len(raw))
	for i, item := range raw {
		doc, err := decodeDocument(item)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "write: document %d: %v", i, err).WithCause(err)
		}
		docs[i] = doc
	}
	if err := h.store.WriteBatch(ctx, collection, docs); err != nil {
		return nil, err
	}

	tags := make([]any, len(docs))
	for i, d := range docs {
		tags[i] = d.Tag
	}
	return tags, nil
}

// decodeDocument reads {document_tag, contents}. Both are required.
func decodeDocument(item any) (schema.Document, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return schema.Document{}, fmt.Errorf("expected a mapping, got %T", item)
	}
	var doc schema.Document
	if err := mapstructure.Decode(m, &doc); err != nil {
		return schema.Document{}, err
	}
	if doc.Tag == "" {
		return schema.Document{}, fmt.Errorf("no document_tag")
	}
	if doc.Contents == nil {
		return schema.Document{}, fmt.Errorf("missing contents mapping")
	}
	return doc, nil
}

// --- update ---

type updateHandler struct{ store store.DocumentStore }

func (h *updateHandler) Name() schema.Action { return schema.ActionUpdate }

func (h *updateHandler) Info() HandlerInfo {
	return HandlerInfo{
		Name:        schema.ActionUpdate,
		Description: "Merge updates into the top-level fields of an existing document",
		Required:    []string{"collection", "document_tag", "updates"},
	}
}

func (h *updateHandler) Validate(kw map[string]any) error {
	return requireKeys(schema.ActionUpdate, kw, "collection", "document_tag", "updates")
}

func (h *updateHandler) Execute(ctx context.Context, _ schema.Step, kw map[string]any) (any, error) {
	k := kwargs(kw)
	collection, err := k.requireString(schema.ActionUpdate, "collection")
	if err != nil {
		return nil, err
	}
	tag, err := k.requireString(schema.ActionUpdate, "document_tag")
	if err != nil {
		return nil, err
	}
	updates, err := k.mapping(schema.ActionUpdate, "updates")
	if err != nil {
		return nil, err
	}
	doc, err := h.store.Update(ctx, collection, tag, updates)
	if err != nil {
		return nil, err
	}
	return doc.ToMap(), nil
}

// --- delete ---

type deleteHandler struct {
	store     store.DocumentStore
	batchSize int
}

func (h *deleteHandler) Name() schema.Action { return schema.ActionDelete }

func (h *deleteHandler) Info() HandlerInfo {
	return HandlerInfo{
		Name:        schema.ActionDelete,
		Description: "Delete a field, a document, or a whole collection in batches",
		Required:    []string{"collection"},
		Optional:    []string{"document_tag", "field"},
	}
}

func (h *deleteHandler) Validate(kw map[string]any) error {
	if err := requireKeys(schema.ActionDelete, kw, "collection"); err != nil {
		return err
	}
	k := kwargs(kw)
	if k.has("field") && !k.has("document_tag") {
		return schema.NewError(schema.ErrCodeValidation, "delete: field requires document_tag").
			WithDetails(map[string]any{"action": string(schema.ActionDelete), "kwarg": "document_tag"})
	}
	return nil
}

// Execute returns the number of fields or documents removed.
func (h *deleteHandler) Execute(ctx context.Context, _ schema.Step, kw map[string]any) (any, error) {
	k := kwargs(kw)
	collection, err := k.requireString(schema.ActionDelete, "collection")
	if err != nil {
		return nil, err
	}
	tag, err := k.optionalString(schema.ActionDelete, "document_tag")
	if err != nil {
		return nil, err
	}
	field, err := k.optionalString(schema.ActionDelete, "field")
	if err != nil {
		return nil, err
	}

	switch {
	case field != "":
		if err := h.store.DeleteField(ctx, collection, tag, field); err != nil {
			return nil, err
		}
		return 1, nil
	case tag != "":
		if err := h.store.DeleteDocument(ctx, collection, tag); err != nil {
			return nil, err
		}
		return 1, nil
	}

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, schema.NewError(schema.ErrCodeExecution, "delete cancelled").WithCause(err)
		}
		n, err := h.store.DeleteBatch(ctx, collection, h.batchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < h.batchSize {
			return total, nil
		}
	}
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
