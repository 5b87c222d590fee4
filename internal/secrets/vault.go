// Package secrets keeps service API keys encrypted at rest in the document
// store and decrypts them only in memory when a send step needs one.
package secrets

import (
	"context"
	"encoding/base64"
	"sort"

	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/pkg/schema"
)

// DefaultCollection holds one document per secret.
const DefaultCollection = "secrets"

// Vault stores and resolves named secrets.
type Vault interface {
	Resolve(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]string, error)
}

// SecretStore persists opaque ciphertext by key.
type SecretStore interface {
	StoreSecret(ctx context.Context, key string, value []byte) error
	GetSecret(ctx context.Context, key string) ([]byte, error)
	DeleteSecret(ctx context.Context, key string) error
	ListSecrets(ctx context.Context) ([]string, error)
}

// DocumentBackend is a SecretStore on a document collection. Each secret is
// a document tagged by its key with the base64 ciphertext under "ciphertext".
type DocumentBackend struct {
	store      store.DocumentStore
	collection string
}

// NewDocumentBackend creates a DocumentBackend. An empty collection means
// DefaultCollection.
func NewDocumentBackend(st store.DocumentStore, collection string) *DocumentBackend {
	if collection == "" {
		collection = DefaultCollection
	}
	return &DocumentBackend{store: st, collection: collection}
}

// StoreSecret inserts the secret or replaces its ciphertext.
func (b *DocumentBackend) StoreSecret(ctx context.Context, key string, value []byte) error {
	contents := map[string]any{"ciphertext": base64.StdEncoding.EncodeToString(value)}
	_, err := b.store.Get(ctx, b.collection, key)
	switch {
	case err == nil:
		_, err = b.store.Update(ctx, b.collection, key, contents)
		return err
	case schema.IsCode(err, schema.ErrCodeNotFound):
		return b.store.WriteBatch(ctx, b.collection, []schema.Document{{Tag: key, Contents: contents}})
	default:
		return err
	}
}

// GetSecret returns the stored ciphertext or NOT_FOUND.
func (b *DocumentBackend) GetSecret(ctx context.Context, key string) ([]byte, error) {
	doc, err := b.store.Get(ctx, b.collection, key)
	if err != nil {
		return nil, err
	}
	encoded, ok := doc.Contents["ciphertext"].(string)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeSecret, "secret %q has no ciphertext", key)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeSecret, "secret %q: %v", key, err).WithCause(err)
	}
	return raw, nil
}

func (b *DocumentBackend) DeleteSecret(ctx context.Context, key string) error {
	return b.store.DeleteDocument(ctx, b.collection, key)
}

// ListSecrets returns the stored keys in order.
func (b *DocumentBackend) ListSecrets(ctx context.Context) ([]string, error) {
	docs, err := b.store.Query(ctx, b.collection, nil, 0)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(docs))
	for _, d := range docs {
		keys = append(keys, d.Tag)
	}
	sort.Strings(keys)
	return keys, nil
}
