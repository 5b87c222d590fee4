// Package engine runs scenarios: it walks the ordered steps, resolves each
// step's references against the execution cache, dispatches it and records
// per-step status. Steps of one run are strictly sequential.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/scenario/internal/logging"
	"github.com/rendis/scenario/internal/resolve"
	"github.com/rendis/scenario/internal/streaming"
	"github.com/rendis/scenario/pkg/schema"
)

// Dispatcher routes a step with resolved kwargs to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, step schema.Step, kwargs map[string]any) (any, error)
}

// Loader materializes a stored scenario.
type Loader interface {
	Load(ctx context.Context, name string) (*schema.Scenario, error)
}

// Interpreter executes scenarios. It keeps no per-run state; every run owns
// its own Cache, so one Interpreter may serve concurrent runs.
type Interpreter struct {
	loader     Loader
	dispatcher Dispatcher
	logger     *slog.Logger
	events     streaming.EventHub
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithEventHub publishes scenario and step progress events to hub.
func WithEventHub(hub streaming.EventHub) Option {
	return func(in *Interpreter) { in.events = hub }
}

// NewInterpreter creates an Interpreter. logger may be nil.
func NewInterpreter(loader Loader, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	in := &Interpreter{loader: loader, dispatcher: dispatcher, logger: logger}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// ExecuteScenario loads and runs the named scenario. The cache is returned in
// every case, so partial progress stays observable after a failure.
func (in *Interpreter) ExecuteScenario(ctx context.Context, name string, input map[string]any) (*Cache, error) {
	ctx = logging.WithScenario(ctx, name)
	sc, err := in.loader.Load(ctx, name)
	if err != nil {
		return NewCache(input), err
	}
	return in.Execute(ctx, sc, input)
}

// Execute runs an already loaded scenario. The first failing step aborts the
// run: it is recorded as error in the cache and no later step executes.
func (in *Interpreter) Execute(ctx context.Context, sc *schema.Scenario, input map[string]any) (*Cache, error) {
	cache := NewCache(input)
	if logging.RunID(ctx) == "" {
		ctx = logging.WithRunID(ctx, uuid.NewString())
	}
	ctx = logging.WithScenario(ctx, sc.Name)

	start := time.Now()
	in.logger.InfoContext(ctx, "scenario started", slog.Int("steps", len(sc.Steps)))
	in.emit(ctx, sc.Name, streaming.StepEvent{EventType: streaming.EventScenarioStarted})

	for idx, step := range sc.Steps {
		i := idx + 1
		if err := ctx.Err(); err != nil {
			in.logger.WarnContext(ctx, "scenario cancelled", slog.Int("completed", idx))
			cerr := schema.NewErrorf(schema.ErrCodeExecution, "scenario %q cancelled before step_%d", sc.Name, i).
				WithCause(err)
			in.emit(context.WithoutCancel(ctx), sc.Name, streaming.StepEvent{EventType: streaming.EventScenarioFailed, Error: cerr.Error()})
			return cache, cerr
		}
		if err := in.runStep(ctx, cache, sc.Name, i, step, input); err != nil {
			in.logger.WarnContext(ctx, "scenario aborted",
				slog.Int("failed_step", i),
				slog.Duration("duration", time.Since(start)),
			)
			in.emit(ctx, sc.Name, streaming.StepEvent{EventType: streaming.EventScenarioFailed, Step: i, Error: err.Error()})
			return cache, err
		}
	}

	in.logger.InfoContext(ctx, "scenario completed",
		slog.Int("steps", len(sc.Steps)),
		slog.Duration("duration", time.Since(start)),
	)
	in.emit(ctx, sc.Name, streaming.StepEvent{EventType: streaming.EventScenarioCompleted})
	return cache, nil
}

func (in *Interpreter) runStep(ctx context.Context, cache *Cache, scenario string, i int, step schema.Step, input map[string]any) error {
	label := fmt.Sprintf("step_%d (%s)", i, step.Label())
	ctx = logging.WithStep(ctx, label)

	if err := cache.Begin(i); err != nil {
		return err
	}
	in.logger.DebugContext(ctx, "step started", slog.String("actor", step.Actor), slog.String("action", string(step.Action)))
	in.emit(ctx, scenario, streaming.StepEvent{EventType: streaming.EventStepStarted, Step: i, Label: step.Label()})

	result, err := in.dispatch(ctx, cache, step, input)
	if err != nil {
		if markErr := cache.MarkError(i, err.Error()); markErr != nil {
			return markErr
		}
		in.logger.WarnContext(ctx, "step failed", slog.String("error", err.Error()))
		in.emit(ctx, scenario, streaming.StepEvent{EventType: streaming.EventStepFailed, Step: i, Label: step.Label(), Error: err.Error()})
		return schema.NewError(schema.ErrCodeStepFailed, err.Error()).
			WithStep(label).
			WithCause(err)
	}

	if step.OutputName != "" {
		cache.Set(step.OutputName, result)
	}
	if err := cache.MarkSuccess(i); err != nil {
		return err
	}
	in.logger.DebugContext(ctx, "step finished")
	in.emit(ctx, scenario, streaming.StepEvent{EventType: streaming.EventStepSucceeded, Step: i, Label: step.Label()})
	return nil
}

// emit publishes a progress event when a hub is configured. Publishing never
// affects the run.
func (in *Interpreter) emit(ctx context.Context, scenario string, ev streaming.StepEvent) {
	if in.events == nil {
		return
	}
	ev.RunID = logging.RunID(ctx)
	ev.Scenario = scenario
	if err := in.events.Publish(ctx, ev); err != nil {
		in.logger.DebugContext(ctx, "progress event not published", slog.String("error", err.Error()))
	}
}

// dispatch resolves the step's kwargs against the current cache and the
// caller input before handing it to the dispatcher.
func (in *Interpreter) dispatch(ctx context.Context, cache *Cache, step schema.Step, input map[string]any) (any, error) {
	kwargs, err := resolve.ResolveMap(step.Kwargs, cache.Snapshot(), input)
	if err != nil {
		return nil, err
	}
	return in.dispatcher.Dispatch(ctx, step, kwargs)
}
