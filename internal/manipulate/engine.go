// Package manipulate implements the data manipulation engine: typed numeric,
// string, datetime and collection operations chained through an explicit
// result cache.
//
// Every operation family is a closed table from action name to handler;
// anything outside the table fails with UNSUPPORTED_OPERATION.
package manipulate

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/rendis/scenario/internal/expressions"
	"github.com/rendis/scenario/internal/resolve"
	"github.com/rendis/scenario/pkg/schema"
)

// Cache holds results recorded under output keys. It has value semantics:
// Execute never mutates the cache it is given.
type Cache map[string]any

// Clone returns a shallow copy of the cache.
func (c Cache) Clone() Cache {
	out := make(Cache, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	return out
}

// operation is one entry of a per-type table.
type operation func(ctx context.Context, e *Engine, action string, p params) (any, error)

// Engine runs process steps. It holds no per-run state, so one Engine may
// serve any number of concurrent runs.
type Engine struct {
	exprs  *expressions.Engines
	tables map[schema.OperationType]map[string]operation
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for "today" and "now".
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an Engine using the given expression engines.
func New(exprs *expressions.Engines, opts ...Option) *Engine {
	e := &Engine{
		exprs:  exprs,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tables = map[schema.OperationType]map[string]operation{
		schema.TypeNumeric:    numericOps,
		schema.TypeString:     stringOps,
		schema.TypeDatetime:   datetimeOps,
		schema.TypeCollection: collectionOps,
	}
	return e
}

// Actions lists the supported action names of a type, sorted.
func (e *Engine) Actions(typ schema.OperationType) []string {
	table := e.tables[typ]
	out := make([]string, 0, len(table))
	for name := range table {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether typ/action is in the operation tables.
func (e *Engine) Supports(typ schema.OperationType, action string) bool {
	_, ok := e.tables[typ][action]
	return ok
}

// Execute runs one step. Its params are resolved first: $name values against
// cache, @name values against inputs. The returned cache is a copy holding
// the result under step.OutputKey when one is declared.
func (e *Engine) Execute(ctx context.Context, step schema.ProcessStep, cache Cache, inputs map[string]any) (any, Cache, error) {
	table, ok := e.tables[step.Type]
	if !ok {
		return nil, cache, schema.NewErrorf(schema.ErrCodeUnsupported, "unsupported operation type %q", step.Type).
			WithDetails(map[string]any{"type": string(step.Type), "action": step.Action})
	}
	op, ok := table[step.Action]
	if !ok {
		return nil, cache, schema.NewErrorf(schema.ErrCodeUnsupported,
			"unsupported %s action %q", step.Type, step.Action).
			WithDetails(map[string]any{"type": string(step.Type), "action": step.Action, "supported": e.Actions(step.Type)})
	}

	resolved, err := resolve.ResolveMap(step.Params, cache, inputs)
	if err != nil {
		return nil, cache, err
	}
	p := params(resolved)
	if _, ok := p[expressions.VarInputs]; !ok {
		p[expressions.VarInputs] = inputs
	}

	result, err := op(ctx, e, step.Action, p)
	if err != nil {
		return nil, cache, err
	}

	next := cache.Clone()
	if step.OutputKey != "" {
		next[step.OutputKey] = result
	}
	return result, next, nil
}

// RunProcess runs every step of def in order and returns the accumulated
// cache. The output key is checked before any step runs.
func (e *Engine) RunProcess(ctx context.Context, def *schema.ProcessDefinition, inputs map[string]any) (Cache, error) {
	if def == nil {
		return nil, schema.NewError(schema.ErrCodeConfig, "process definition is nil")
	}
	if def.OutputKey == "" {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "process %q declares no output_key", def.Name)
	}
	if len(def.Steps) == 0 {
		return nil, schema.NewErrorf(schema.ErrCodeConfig, "process %q has no steps", def.Name)
	}

	cache := Cache{}
	for i, step := range def.Steps {
		var err error
		_, cache, err = e.Execute(ctx, step, cache, inputs)
		if err != nil {
			return cache, schema.NewErrorf(schema.CodeOf(err), "process %q step s%d (%s.%s): %v",
				def.Name, i+1, step.Type, step.Action, err).WithCause(err)
		}
		e.logger.DebugContext(ctx, "process step completed",
			slog.String("process", def.Name),
			slog.Int("step", i+1),
			slog.String("type", string(step.Type)),
			slog.String("action", step.Action),
		)
	}
	return cache, nil
}

// Output returns the process result stored under def.OutputKey.
func Output(def *schema.ProcessDefinition, cache Cache) (any, error) {
	v, ok := cache[def.OutputKey]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeConfig,
			"process %q never populated output_key %q", def.Name, def.OutputKey).
			WithDetails(map[string]any{"process": def.Name, "output_key": def.OutputKey})
	}
	return v, nil
}
