package scenario

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/internal/validation"
	"github.com/rendis/scenario/pkg/schema"
)

// File is the YAML form of a scenario, optionally bundling the process and
// service documents its steps use.
type File struct {
	Name      string                    `yaml:"name"`
	Steps     []FileStep                `yaml:"steps"`
	Processes map[string]map[string]any `yaml:"processes,omitempty"`
	Services  map[string]map[string]any `yaml:"services,omitempty"`
}

// FileStep is one step of a scenario file.
type FileStep struct {
	Actor      string         `yaml:"actor"`
	Action     string         `yaml:"action"`
	Kwargs     map[string]any `yaml:"kwargs"`
	OutputName string         `yaml:"output_name,omitempty"`
}

// Collections names where bundled definitions are written.
type Collections struct {
	Processes string
	Services  string
}

// ReadFile parses a scenario file, rejecting unknown fields.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a scenario file from r.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "decode scenario file: %v", err).WithCause(err)
	}
	if file.Name == "" {
		return nil, schema.NewError(schema.ErrCodeConfig, "scenario file has no name")
	}
	if len(file.Steps) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "scenario %q has no steps", file.Name)
	}
	return &file, nil
}

// Documents renders the steps as stored step documents tagged s1..sN.
func (f *File) Documents() []schema.Document {
	docs := make([]schema.Document, 0, len(f.Steps))
	for i, s := range f.Steps {
		contents := map[string]any{
			"actor":  s.Actor,
			"action": s.Action,
			"kwargs": s.Kwargs,
			"step":   i + 1,
		}
		if s.Kwargs == nil {
			contents["kwargs"] = map[string]any{}
		}
		if s.OutputName != "" {
			contents["output_name"] = s.OutputName
		}
		docs = append(docs, schema.Document{Tag: fmt.Sprintf("s%d", i+1), Contents: contents})
	}
	return docs
}

// Importer writes scenario files into a document store.
type Importer struct {
	store       store.DocumentStore
	validator   *validation.DocumentValidator
	collections Collections
}

// NewImporter creates an Importer. validator may be nil.
func NewImporter(st store.DocumentStore, validator *validation.DocumentValidator, collections Collections) *Importer {
	return &Importer{store: st, validator: validator, collections: collections}
}

// Import validates every document of the file, then writes the steps, the
// bundled processes and the bundled services. Writes are strict: existing
// documents are never overwritten.
func (im *Importer) Import(ctx context.Context, f *File) error {
	steps := f.Documents()
	processes := bundled(f.Processes)
	services := bundled(f.Services)

	if im.validator != nil {
		for _, set := range []struct {
			kind validation.Kind
			docs []schema.Document
		}{
			{validation.KindStep, steps},
			{validation.KindProcess, processes},
			{validation.KindService, services},
		} {
			for _, doc := range set.docs {
				if err := im.validator.Validate(set.kind, doc.Tag, doc.Contents); err != nil {
					return err
				}
			}
		}
	}
	for _, doc := range steps {
		if _, err := ParseStep(doc.Tag, doc.Contents); err != nil {
			return err
		}
	}

	if err := im.store.WriteBatch(ctx, f.Name, steps); err != nil {
		return err
	}
	if len(processes) > 0 {
		if err := im.store.WriteBatch(ctx, im.collections.Processes, processes); err != nil {
			return err
		}
	}
	if len(services) > 0 {
		if err := im.store.WriteBatch(ctx, im.collections.Services, services); err != nil {
			return err
		}
	}
	return nil
}

// ImportGlob imports every file under root matching pattern (doublestar
// syntax, e.g. "**/*.yaml") and returns the imported scenario names.
func (im *Importer) ImportGlob(ctx context.Context, root, pattern string) ([]string, error) {
	fsys := os.DirFS(root)
	matches, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	slices.Sort(matches)

	var names []string
	for _, match := range matches {
		info, err := fs.Stat(fsys, match)
		if err != nil {
			return names, fmt.Errorf("stat %s: %w", match, err)
		}
		if info.IsDir() {
			continue
		}
		file, err := openFS(fsys, match)
		if err != nil {
			return names, fmt.Errorf("%s: %w", match, err)
		}
		if err := im.Import(ctx, file); err != nil {
			return names, fmt.Errorf("%s: %w", match, err)
		}
		names = append(names, file.Name)
	}
	return names, nil
}

func openFS(fsys fs.FS, name string) (*File, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func bundled(defs map[string]map[string]any) []schema.Document {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)

	docs := make([]schema.Document, 0, len(names))
	for _, name := range names {
		docs = append(docs, schema.Document{Tag: name, Contents: defs[name]})
	}
	return docs
}
