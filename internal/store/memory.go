package store

import (
	"context"
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/rendis/scenario/pkg/schema"
)

// MemoryStore is an in-process DocumentStore. Contents are deep-copied on the
// way in and out so callers never share maps with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]map[string]any)}
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }
func (s *MemoryStore) Close() error                  { return nil }

func (s *MemoryStore) Get(_ context.Context, collection, tag string) (*schema.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contents, ok := s.collections[collection][tag]
	if !ok {
		return nil, notFound(collection, tag)
	}
	return &schema.Document{Tag: tag, Contents: deepCopyMap(contents)}, nil
}

func (s *MemoryStore) Query(_ context.Context, collection string, filters []schema.Filter, limit int) ([]schema.Document, error) {
	if err := validateFilters(filters); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.collections[collection]
	tags := lo.Keys(docs)
	sort.Strings(tags)

	var out []schema.Document
	for _, tag := range tags {
		if !matchAll(docs[tag], filters) {
			continue
		}
		out = append(out, schema.Document{Tag: tag, Contents: deepCopyMap(docs[tag])})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) WriteBatch(_ context.Context, collection string, docs []schema.Document) error {
	if err := checkBatch(collection, docs); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.collections[collection]
	for _, d := range docs {
		if _, ok := existing[d.Tag]; ok {
			return alreadyExists(collection, d.Tag)
		}
	}
	if existing == nil {
		existing = make(map[string]map[string]any, len(docs))
		s.collections[collection] = existing
	}
	for _, d := range docs {
		existing[d.Tag] = deepCopyMap(d.Contents)
	}
	return nil
}

func (s *MemoryStore) Update(_ context.Context, collection, tag string, partial map[string]any) (*schema.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, ok := s.collections[collection][tag]
	if !ok {
		return nil, notFound(collection, tag)
	}
	merged := mergeTop(contents, partial)
	s.collections[collection][tag] = merged
	return &schema.Document{Tag: tag, Contents: deepCopyMap(merged)}, nil
}

func (s *MemoryStore) DeleteField(_ context.Context, collection, tag, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, ok := s.collections[collection][tag]
	if !ok {
		return notFound(collection, tag)
	}
	if !removeField(contents, field) {
		return schema.NewErrorf(schema.ErrCodeNotFound, "field %q not found in document %q", field, tag).
			WithDetails(map[string]any{"collection": collection, "document_tag": tag, "field": field})
	}
	return nil
}

func (s *MemoryStore) DeleteDocument(_ context.Context, collection, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][tag]; !ok {
		return notFound(collection, tag)
	}
	delete(s.collections[collection], tag)
	if len(s.collections[collection]) == 0 {
		delete(s.collections, collection)
	}
	return nil
}

func (s *MemoryStore) DeleteBatch(_ context.Context, collection string, limit int) (int, error) {
	if limit <= 0 {
		return 0, schema.NewErrorf(schema.ErrCodeValidation, "delete batch size must be positive, got %d", limit)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.collections[collection]
	tags := lo.Keys(docs)
	sort.Strings(tags)
	if len(tags) > limit {
		tags = tags[:limit]
	}
	for _, tag := range tags {
		delete(docs, tag)
	}
	if len(docs) == 0 {
		delete(s.collections, collection)
	}
	return len(tags), nil
}

func (s *MemoryStore) Collections(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := lo.Keys(s.collections)
	sort.Strings(out)
	return out, nil
}

var _ DocumentStore = (*MemoryStore)(nil)
