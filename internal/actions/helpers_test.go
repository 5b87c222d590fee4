package actions

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rendis/scenario/internal/publisher"
	"github.com/rendis/scenario/internal/secrets"
	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/internal/validation"
	"github.com/rendis/scenario/pkg/schema"
)

// fakePublisher records requests and replies with a canned response.
type fakePublisher struct {
	mu       sync.Mutex
	requests []publisher.RequestConfig
	payloads []any
	keys     []string
	reply    *publisher.Response
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, req publisher.RequestConfig, payload any, apiKey string) (*publisher.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.payloads = append(f.payloads, payload)
	f.keys = append(f.keys, apiKey)
	if f.err != nil {
		return nil, f.err
	}
	if f.reply == nil {
		return &publisher.Response{StatusCode: 200}, nil
	}
	return f.reply, nil
}

type fixture struct {
	store *store.MemoryStore
	reg   *Registry
	pub   *fakePublisher
	vault *secrets.AESVault
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	validator, err := validation.NewDocumentValidator()
	require.NoError(t, err)

	f := &fixture{store: store.NewMemoryStore(), reg: NewRegistry(nil), pub: &fakePublisher{}}
	f.vault, err = secrets.NewAESVault(secrets.NewDocumentBackend(f.store, ""), secrets.VaultConfig{MasterKey: make([]byte, 32)})
	require.NoError(t, err)
	require.NoError(t, RegisterBuiltins(f.reg, Deps{
		Store:           f.store,
		Validator:       validator,
		Publisher:       f.pub,
		Secrets:         f.vault,
		DeleteBatchSize: batchSize,
	}))
	return f
}

func (f *fixture) seed(t *testing.T, collection string, docs ...schema.Document) {
	t.Helper()
	require.NoError(t, f.store.WriteBatch(context.Background(), collection, docs))
}

func (f *fixture) dispatch(t *testing.T, action schema.Action, kw map[string]any) (any, error) {
	t.Helper()
	return f.reg.Dispatch(t.Context(), schema.Step{ID: "s1", Actor: "tester", Action: action}, kw)
}

func doc(tag string, contents map[string]any) schema.Document {
	return schema.Document{Tag: tag, Contents: contents}
}
