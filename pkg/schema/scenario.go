package schema

import (
	"fmt"
	"strings"
)

// Action enumerates the canonical step actions understood by the dispatcher.
type Action string

const (
	ActionRead       Action = "read"
	ActionWrite      Action = "write"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionManipulate Action = "manipulate"
	ActionSend       Action = "send"
)

// Actions lists every canonical action in dispatch-table order.
var Actions = []Action{ActionRead, ActionWrite, ActionUpdate, ActionDelete, ActionManipulate, ActionSend}

// legacyActions maps historical action spellings onto their canonical names.
var legacyActions = map[string]Action{
	"reads":       ActionRead,
	"writes":      ActionWrite,
	"updates":     ActionUpdate,
	"deletes":     ActionDelete,
	"manipulates": ActionManipulate,
	"process":     ActionManipulate,
	"sends":       ActionSend,
}

// CanonicalAction normalizes an action name. The second result is false when
// the name is neither canonical nor a known legacy spelling.
func CanonicalAction(name string) (Action, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, a := range Actions {
		if string(a) == n {
			return a, true
		}
	}
	a, ok := legacyActions[n]
	return a, ok
}

// Step is one parsed, immutable unit of work within a scenario.
type Step struct {
	ID         string         `json:"id"`
	Order      int            `json:"order"`
	Actor      string         `json:"actor"`
	Action     Action         `json:"action"`
	Kwargs     map[string]any `json:"kwargs"`
	OutputName string         `json:"output_name,omitempty"`
}

// Label identifies a step in logs and errors.
func (s Step) Label() string {
	return s.Actor + "/" + string(s.Action)
}

// Reserved execution cache keys.
const (
	// InputKey holds the caller-supplied input of a run.
	InputKey = "input"

	StatusSuccess = "success"
	StatusError   = "error"
)

// StatusKey is the cache key recording the outcome of the i-th executed step
// (1-indexed).
func StatusKey(i int) string {
	return fmt.Sprintf("step_%d_status", i)
}

// ErrorKey is the cache key holding the failure message of the i-th step.
func ErrorKey(i int) string {
	return fmt.Sprintf("step_%d_error", i)
}

// Scenario is an ordered sequence of steps identified by name.
type Scenario struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Document is one stored document: its tag doubles as the store identifier.
type Document struct {
	Tag      string         `json:"document_tag" mapstructure:"document_tag"`
	Contents map[string]any `json:"contents" mapstructure:"contents"`
}

// ToMap renders the document in the shape returned to scenario steps.
func (d Document) ToMap() map[string]any {
	return map[string]any{
		"document_tag": d.Tag,
		"contents":     d.Contents,
	}
}

// FilterOp is a comparison operator used in store filter predicates.
type FilterOp string

const (
	OpEqual         FilterOp = "=="
	OpNotEqual      FilterOp = "!="
	OpLess          FilterOp = "<"
	OpLessEqual     FilterOp = "<="
	OpGreater       FilterOp = ">"
	OpGreaterEqual  FilterOp = ">="
	OpIn            FilterOp = "in"
	OpNotIn         FilterOp = "not-in"
	OpArrayContains FilterOp = "array-contains"
)

// Filter is one (field, operator, value) predicate; filters are ANDed together.
type Filter struct {
	Field string   `json:"field" mapstructure:"field"`
	Op    FilterOp `json:"op" mapstructure:"op"`
	Value any      `json:"value" mapstructure:"value"`
}

// Valid reports whether the operator is one the store understands.
func (f Filter) Valid() bool {
	switch f.Op {
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpIn, OpNotIn, OpArrayContains:
		return f.Field != ""
	}
	return false
}
