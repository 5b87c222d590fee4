package actions

import (
	"log/slog"

	"github.com/rendis/scenario/internal/expressions"
	"github.com/rendis/scenario/internal/manipulate"
	"github.com/rendis/scenario/internal/store"
	"github.com/rendis/scenario/internal/validation"
	"github.com/rendis/scenario/pkg/schema"
)

// Default collections holding process and service definitions.
const (
	DefaultProcessCollection = "processes"
	DefaultServiceCollection = "services"
)

// Deps are the collaborators shared by the built-in handlers.
type Deps struct {
	Store     store.DocumentStore
	Validator *validation.DocumentValidator
	Engine    *manipulate.Engine
	Publisher Publisher
	JQ        *expressions.GoJQEngine
	// Secrets resolves API keys by service name for send steps without api_key.
	Secrets SecretResolver

	ProcessCollection string
	ServiceCollection string
	DeleteBatchSize   int
	Logger            *slog.Logger
}

// RegisterBuiltins registers a handler for every canonical action.
func RegisterBuiltins(reg *Registry, deps Deps) error {
	if deps.Store == nil {
		return schema.NewError(schema.ErrCodeConfig, "actions: a document store is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Engine == nil || deps.JQ == nil {
		engines, err := expressions.NewEngines()
		if err != nil {
			return err
		}
		if deps.Engine == nil {
			deps.Engine = manipulate.New(engines, manipulate.WithLogger(deps.Logger))
		}
		if deps.JQ == nil {
			deps.JQ = engines.JQ
		}
	}
	if deps.ProcessCollection == "" {
		deps.ProcessCollection = DefaultProcessCollection
	}
	if deps.ServiceCollection == "" {
		deps.ServiceCollection = DefaultServiceCollection
	}
	if deps.DeleteBatchSize <= 0 {
		deps.DeleteBatchSize = DefaultDeleteBatchSize
	}

	all := []Handler{
		&readHandler{store: deps.Store},
		&writeHandler{store: deps.Store},
		&updateHandler{store: deps.Store},
		&deleteHandler{store: deps.Store, batchSize: deps.DeleteBatchSize},
		&manipulateHandler{
			store:      deps.Store,
			validator:  deps.Validator,
			engine:     deps.Engine,
			collection: deps.ProcessCollection,
			logger:     deps.Logger,
		},
	}
	if deps.Publisher != nil {
		all = append(all, &sendHandler{
			store:      deps.Store,
			validator:  deps.Validator,
			publisher:  deps.Publisher,
			secrets:    deps.Secrets,
			jq:         deps.JQ,
			collection: deps.ServiceCollection,
			logger:     deps.Logger,
		})
	}

	for _, h := range all {
		if err := reg.Register(h); err != nil {
			return err
		}
	}
	return nil
}
