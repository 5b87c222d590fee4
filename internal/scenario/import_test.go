package scenario

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/internal/validation"
	"github.com/rendis/scenario/pkg/schema"
)

const onboardingYAML = `
name: onboarding
steps:
  - actor: clerk
    action: read
    kwargs:
      collection: users
      document_tag: "@user"
    output_name: user
  - actor: clerk
    action: manipulate
    kwargs:
      process: shout
      name: $user.0.contents.name
    output_name: greeting
processes:
  shout:
    type: string
    action: upper
    output_key: loud
    params:
      values: "@name"
services:
  mailer:
    endpoints:
      send:
        method: POST
        url: https://mail.example.com/send
`

func newImporter(t *testing.T, st store.DocumentStore) *Importer {
	t.Helper()
	v, err := validation.NewDocumentValidator()
	require.NoError(t, err)
	return NewImporter(st, v, Collections{Processes: "processes", Services: "services"})
}

func TestDecode(t *testing.T) {
	f, err := Decode(strings.NewReader(onboardingYAML))
	require.NoError(t, err)
	assert.Equal(t, "onboarding", f.Name)
	require.Len(t, f.Steps, 2)
	assert.Equal(t, "greeting", f.Steps[1].OutputName)

	docs := f.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, "s2", docs[1].Tag)
	assert.Equal(t, 2, docs[1].Contents["step"])
}

func TestDecode_Errors(t *testing.T) {
	for name, src := range map[string]string{
		"unknown field": "name: x\nsteps: [{actor: a, action: read, kwargs: {}}]\nextra: 1\n",
		"no name":       "steps: [{actor: a, action: read, kwargs: {}}]\n",
		"no steps":      "name: x\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(src))
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))
		})
	}
}

func TestImport_RoundTripsThroughLoader(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	f, err := Decode(strings.NewReader(onboardingYAML))
	require.NoError(t, err)

	require.NoError(t, newImporter(t, st).Import(ctx, f))

	sc, err := NewLoader(st, nil, nil).Load(ctx, "onboarding")
	require.NoError(t, err)
	require.Len(t, sc.Steps, 2)
	assert.Equal(t, schema.ActionRead, sc.Steps[0].Action)
	assert.Equal(t, "@user", sc.Steps[0].Kwargs["document_tag"])

	proc, err := st.Get(ctx, "processes", "shout")
	require.NoError(t, err)
	assert.Equal(t, "loud", proc.Contents["output_key"])

	_, err = st.Get(ctx, "services", "mailer")
	require.NoError(t, err)
}

func TestImport_IsStrict(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	f, err := Decode(strings.NewReader(onboardingYAML))
	require.NoError(t, err)

	im := newImporter(t, st)
	require.NoError(t, im.Import(ctx, f))
	err = im.Import(ctx, f)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeConflict))
}

func TestImport_RejectsInvalidBundle(t *testing.T) {
	st := store.NewMemoryStore()
	f := &File{
		Name:      "bad",
		Steps:     []FileStep{{Actor: "a", Action: "read", Kwargs: map[string]any{}}},
		Processes: map[string]map[string]any{"p": {"type": "numeric", "action": "sum"}},
	}
	err := newImporter(t, st).Import(context.Background(), f)
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeConfig))

	cols, err := st.Collections(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestImportGlob(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	write := func(rel, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, rel), []byte(body), 0o644))
	}
	write("a.yaml", "name: alpha\nsteps:\n  - {actor: a, action: read, kwargs: {collection: c}}\n")
	write("nested/b.yaml", "name: beta\nsteps:\n  - {actor: a, action: delete, kwargs: {collection: c}}\n")
	write("notes.txt", "ignored")

	st := store.NewMemoryStore()
	names, err := newImporter(t, st).ImportGlob(context.Background(), dir, "**/*.yaml")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, names)

	cols, err := st.Collections(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, cols)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
