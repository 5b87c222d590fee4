package expressions

import (
	"context"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/scenario/pkg/schema"
)

// ExprEngine evaluates the value expressions of collection map and reduce
// with expr-lang/expr. Every program sees four variables:
//
//	item    the current element
//	index   its position in the input list (int)
//	acc     the running accumulator of reduce, nil for map
//	inputs  the caller inputs of the process
//
// Variables left out of vars are bound to nil, so `acc ?? 0` works on the
// first reduce call. Other keys in vars are visible as extra variables.
type ExprEngine struct {
	programs sync.Map // expression -> *vm.Program
}

// NewExprEngine creates an ExprEngine with an empty program cache.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{}
}

// Name returns "expr".
func (e *ExprEngine) Name() string {
	return "expr"
}

// Evaluate runs expression with vars bound as described on ExprEngine.
// A syntax error is VALIDATION_ERROR; a runtime failure is EXECUTION_ERROR.
func (e *ExprEngine) Evaluate(_ context.Context, expression string, vars map[string]any) (any, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}
	prg, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	out, err := vm.Run(prg, itemEnv(vars))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "expr %q: %v", expression, err).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression, "index": vars[VarIndex]})
	}
	return out, nil
}

// program compiles expression once. Programs carry no environment type, so
// one program serves items of any shape.
func (e *ExprEngine) program(expression string) (*vm.Program, error) {
	if cached, ok := e.programs.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	prg, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "expr %q does not compile: %v", expression, err).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}
	actual, _ := e.programs.LoadOrStore(expression, prg)
	return actual.(*vm.Program), nil
}

func itemEnv(vars map[string]any) map[string]any {
	env := map[string]any{
		VarItem:   nil,
		VarIndex:  0,
		VarAcc:    nil,
		VarInputs: map[string]any{},
	}
	for k, v := range vars {
		if v == nil && k == VarInputs {
			continue
		}
		env[k] = v
	}
	return env
}

var _ Engine = (*ExprEngine)(nil)
