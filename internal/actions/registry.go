package actions

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/rendis/scenario/pkg/schema"
)

// Registry is the thread-safe dispatch table keyed by canonical action.
// It implements engine.Dispatcher.
type Registry struct {
	mu       sync.RWMutex
	handlers map[schema.Action]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[schema.Action]Handler),
		logger:   logger,
	}
}

// Register adds a handler. Only canonical actions are accepted and each at
// most once.
func (r *Registry) Register(h Handler) error {
	if h == nil {
		return schema.NewError(schema.ErrCodeValidation, "handler is nil")
	}
	name := h.Name()
	if canonical, ok := schema.CanonicalAction(string(name)); !ok || canonical != name {
		return schema.NewErrorf(schema.ErrCodeValidation, "handler name %q is not a canonical action", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "handler %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Get returns the handler for an action, accepting legacy spellings.
func (r *Registry) Get(action string) (Handler, error) {
	canonical, ok := schema.CanonicalAction(action)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeUnsupported, "unknown action %q", action).
			WithDetails(map[string]any{"action": action})
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[canonical]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeUnsupported, "no handler registered for action %q", canonical).
			WithDetails(map[string]any{"action": string(canonical)})
	}
	return h, nil
}

// Has reports whether an action can be dispatched.
func (r *Registry) Has(action string) bool {
	_, err := r.Get(action)
	return err == nil
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}

// List returns every handler's info, sorted by name.
func (r *Registry) List() []HandlerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]HandlerInfo, 0, len(r.handlers))
	for _, h := range r.handlers {
		infos = append(infos, h.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Dispatch validates kwargs against the step's handler and executes it.
func (r *Registry) Dispatch(ctx context.Context, step schema.Step, kw map[string]any) (any, error) {
	h, err := r.Get(string(step.Action))
	if err != nil {
		return nil, err
	}
	if kw == nil {
		kw = map[string]any{}
	}
	if err := h.Validate(kw); err != nil {
		return nil, err
	}

	r.logger.DebugContext(ctx, "dispatching step",
		slog.String("step_id", step.ID),
		slog.String("actor", step.Actor),
		slog.String("action", string(h.Name())),
	)
	return h.Execute(ctx, step, kw)
}
