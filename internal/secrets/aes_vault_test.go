package secrets

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/pkg/schema"
)

func testKey(seed byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i) + seed
	}
	return key
}

func testVault(t *testing.T) (*AESVault, *DocumentBackend) {
	t.Helper()
	backend := NewDocumentBackend(store.NewMemoryStore(), "")
	v, err := NewAESVault(backend, VaultConfig{MasterKey: testKey(0)})
	require.NoError(t, err)
	return v, backend
}

func TestAESVault_StoreAndResolve(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "notifier", []byte("sk-secret-123")))

	val, err := v.Resolve(ctx, "notifier")
	require.NoError(t, err)
	assert.Equal(t, []byte("sk-secret-123"), val)
}

func TestAESVault_EncryptedAtRest(t *testing.T) {
	v, backend := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "token", []byte("plaintext-value")))

	doc, err := backend.store.Get(ctx, DefaultCollection, "token")
	require.NoError(t, err)
	assert.NotContains(t, doc.Contents["ciphertext"], "plaintext-value")

	raw, err := backend.GetSecret(ctx, "token")
	require.NoError(t, err)
	assert.Greater(t, len(raw), len("plaintext-value"))
}

func TestAESVault_PassphraseDerivation(t *testing.T) {
	backend := NewDocumentBackend(store.NewMemoryStore(), "keys")
	v, err := NewAESVault(backend, VaultConfig{
		Passphrase: "my-secure-passphrase",
		Salt:       []byte("test-salt-16byte"),
		Iterations: 1000,
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "k", []byte("value")))
	val, err := v.Resolve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), val)

	cols, err := backend.store.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keys"}, cols)
}

func TestAESVault_WrongKeyCannotDecrypt(t *testing.T) {
	backend := NewDocumentBackend(store.NewMemoryStore(), "")
	ctx := context.Background()

	v1, err := NewAESVault(backend, VaultConfig{MasterKey: testKey(0)})
	require.NoError(t, err)
	require.NoError(t, v1.Store(ctx, "secret", []byte("hidden")))

	v2, err := NewAESVault(backend, VaultConfig{MasterKey: testKey(1)})
	require.NoError(t, err)
	_, err = v2.Resolve(ctx, "secret")
	assert.True(t, schema.IsCode(err, schema.ErrCodeSecret))
}

func TestAESVault_CiphertextBoundToKey(t *testing.T) {
	v, backend := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "billing", []byte("sk-billing")))
	raw, err := backend.GetSecret(ctx, "billing")
	require.NoError(t, err)
	require.NoError(t, backend.StoreSecret(ctx, "notifier", raw))

	_, err = v.Resolve(ctx, "notifier")
	assert.True(t, schema.IsCode(err, schema.ErrCodeSecret))
}

func TestAESVault_Delete(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "key", []byte("val")))
	require.NoError(t, v.Delete(ctx, "key"))

	_, err := v.Resolve(ctx, "key")
	assert.True(t, schema.IsCode(err, schema.ErrCodeNotFound))
}

func TestAESVault_List(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	for _, k := range []string{"c_key", "a_key", "b_key"} {
		require.NoError(t, v.Store(ctx, k, []byte(k)))
	}

	keys, err := v.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_key", "b_key", "c_key"}, keys)
}

func TestAESVault_Overwrite(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "key", []byte("v1")))
	require.NoError(t, v.Store(ctx, "key", []byte("v2")))

	val, err := v.Resolve(ctx, "key")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), val)
}

func TestAESVault_UniqueNonces(t *testing.T) {
	v, backend := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "k1", []byte("same-value")))
	require.NoError(t, v.Store(ctx, "k2", []byte("same-value")))

	ct1, err := backend.GetSecret(ctx, "k1")
	require.NoError(t, err)
	ct2, err := backend.GetSecret(ctx, "k2")
	require.NoError(t, err)
	assert.False(t, bytes.Equal(ct1, ct2))
}

func TestAESVault_EmptyValue(t *testing.T) {
	v, _ := testVault(t)
	ctx := context.Background()

	require.NoError(t, v.Store(ctx, "empty", []byte{}))
	val, err := v.Resolve(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestAESVault_Config(t *testing.T) {
	tests := []struct {
		name string
		cfg  VaultConfig
	}{
		{"short master key", VaultConfig{MasterKey: []byte("too-short")}},
		{"nothing configured", VaultConfig{}},
		{"passphrase without salt", VaultConfig{Passphrase: "pass"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAESVault(NewDocumentBackend(store.NewMemoryStore(), ""), tt.cfg)
			assert.True(t, schema.IsCode(err, schema.ErrCodeSecret))
		})
	}
	assert.False(t, VaultConfig{}.Enabled())
	assert.True(t, VaultConfig{Passphrase: "p"}.Enabled())
}

func TestAESVault_EmptyKeyRejected(t *testing.T) {
	v, _ := testVault(t)
	err := v.Store(context.Background(), "", []byte("x"))
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}
