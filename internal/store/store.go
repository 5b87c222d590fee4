package store

import (
	"context"

	"github.com/rendis/scenario/pkg/schema"
)

// DocumentStore is the document-store collaborator consumed by the dispatcher.
// Documents are JSON objects addressed by (collection, tag).
// All implementations must be safe for concurrent use.
type DocumentStore interface {
	// Get returns one document or a NOT_FOUND error.
	Get(ctx context.Context, collection, tag string) (*schema.Document, error)
	// Query scans a collection, keeping documents that satisfy every filter.
	// A limit <= 0 means no limit. Results are ordered by tag.
	Query(ctx context.Context, collection string, filters []schema.Filter, limit int) ([]schema.Document, error)
	// WriteBatch inserts all documents atomically. It fails without writing
	// anything when two documents share a tag or a tag already exists.
	WriteBatch(ctx context.Context, collection string, docs []schema.Document) error
	// Update merges partial into an existing document's top-level fields.
	Update(ctx context.Context, collection, tag string, partial map[string]any) (*schema.Document, error)
	// DeleteField removes one (dot-delimited) field from an existing document.
	DeleteField(ctx context.Context, collection, tag, field string) error
	// DeleteDocument removes one existing document.
	DeleteDocument(ctx context.Context, collection, tag string) error
	// DeleteBatch removes up to limit documents of a collection and reports how many.
	DeleteBatch(ctx context.Context, collection string, limit int) (int, error)
	// Collections lists every collection holding at least one document.
	Collections(ctx context.Context) ([]string, error)

	Migrate(ctx context.Context) error
	Close() error
}
