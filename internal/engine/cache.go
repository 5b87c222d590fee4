package engine

import (
	"maps"
	"sync"

	"github.com/rendis/scenario/pkg/schema"
)

// StepState is the lifecycle position of one executed step.
type StepState string

const (
	StatePending StepState = "pending"
	StateRunning StepState = "running"
	StateSuccess StepState = "success"
	StateError   StepState = "error"
)

// validTransitions lists the allowed lifecycle moves. Terminal states have
// no outgoing transitions, so a step records exactly one status.
var validTransitions = map[StepState][]StepState{
	StatePending: {StateRunning},
	StateRunning: {StateSuccess, StateError},
}

func isValidTransition(from, to StepState) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Cache is the execution cache of one scenario run. Entries are only added
// or overwritten, never removed. It is safe for concurrent readers.
type Cache struct {
	mu     sync.RWMutex
	values map[string]any
	states map[int]StepState
}

// NewCache creates a cache seeded with the caller input under schema.InputKey.
func NewCache(input map[string]any) *Cache {
	if input == nil {
		input = map[string]any{}
	}
	return &Cache{
		values: map[string]any{schema.InputKey: input},
		states: make(map[int]StepState),
	}
}

// Get returns one entry.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Set writes an entry.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Snapshot returns a shallow copy of every entry.
func (c *Cache) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.values)
}

// Len reports the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.values)
}

// State reports the lifecycle state of step i (1-indexed).
func (c *Cache) State(i int) StepState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.states[i]; ok {
		return s
	}
	return StatePending
}

// Begin moves step i to running.
func (c *Cache) Begin(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transition(i, StateRunning)
}

// MarkSuccess records step_<i>_status = success.
func (c *Cache) MarkSuccess(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transition(i, StateSuccess); err != nil {
		return err
	}
	c.values[schema.StatusKey(i)] = schema.StatusSuccess
	return nil
}

// MarkError records step_<i>_status = error and the failure message.
func (c *Cache) MarkError(i int, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.transition(i, StateError); err != nil {
		return err
	}
	c.values[schema.StatusKey(i)] = schema.StatusError
	c.values[schema.ErrorKey(i)] = msg
	return nil
}

// transition must be called with mu held.
func (c *Cache) transition(i int, to StepState) error {
	from, ok := c.states[i]
	if !ok {
		from = StatePending
	}
	if !isValidTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeExecution,
			"invalid step transition: %s -> %s", from, to).
			WithDetails(map[string]any{"step": i, "from": string(from), "to": string(to)})
	}
	c.states[i] = to
	return nil
}
