// Package streaming fans out scenario progress events to live subscribers.
package streaming

import "context"

// Event types published while a scenario runs.
const (
	EventScenarioStarted   = "scenario.started"
	EventScenarioCompleted = "scenario.completed"
	EventScenarioFailed    = "scenario.failed"
	EventStepStarted       = "step.started"
	EventStepSucceeded     = "step.succeeded"
	EventStepFailed        = "step.failed"
)

// StepEvent is a progress event emitted during one scenario run. Step is the
// 1-based position of the step, zero for scenario-level events.
type StepEvent struct {
	RunID     string `json:"run_id"`
	Scenario  string `json:"scenario"`
	Step      int    `json:"step,omitempty"`
	Label     string `json:"label,omitempty"`
	EventType string `json:"event_type"`
	Error     string `json:"error,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
type EventFilter struct {
	RunID      string   `json:"run_id,omitempty"`
	Scenario   string   `json:"scenario,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for scenario progress events.
type EventHub interface {
	Publish(ctx context.Context, event StepEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan StepEvent, func(), error)
}
