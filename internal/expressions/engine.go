// Package expressions hosts the three expression languages used by data
// manipulation: CEL for predicates, Expr for value expressions and gojq for
// selectors and JSON queries. Compiled programs are cached per engine.
package expressions

import "context"

// Engine evaluates an expression against named variables.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, vars map[string]any) (any, error)
}

// Variables exposed to collection expressions.
const (
	VarItem   = "item"
	VarIndex  = "index"
	VarAcc    = "acc"
	VarInputs = "inputs"
)

// Engines bundles one instance of each engine. All engines are safe for
// concurrent use, so a single Engines value can be shared across runs.
type Engines struct {
	CEL  *CELEngine
	Expr *ExprEngine
	JQ   *GoJQEngine
}

// NewEngines creates one engine of each kind.
func NewEngines() (*Engines, error) {
	celEngine, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &Engines{
		CEL:  celEngine,
		Expr: NewExprEngine(),
		JQ:   NewGoJQEngine(),
	}, nil
}
