// Package expr compiles and evaluates transformation expressions.
//
// Expressions address the input document through the doc variable and
// may call any helper registered in the functions registry. Every
// compilation builds a fresh environment so registry changes are picked
// up without restarts.
package expr

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/canonmorph/canonmorph/internal/functions"
	"github.com/canonmorph/canonmorph/internal/observability"
	"github.com/canonmorph/canonmorph/internal/util"
)

// DocumentVariable is the name expressions address the input document by.
const DocumentVariable = "doc"

// evaluatorTag identifies this evaluator in expression errors.
const evaluatorTag = "cel"

// Program is a compiled transformation expression ready for evaluation.
type Program interface {
	// Eval evaluates the expression against a document and returns the
	// resulting object.
	Eval(doc map[string]interface{}) (map[string]interface{}, error)
}

// Evaluator compiles transformation expressions.
type Evaluator interface {
	// Compile parses and type-checks an expression. The returned Program
	// is safe for concurrent use.
	Compile(expression string) (Program, error)
}

// celEvaluator implements Evaluator on top of CEL.
type celEvaluator struct {
	registry *functions.Registry
	logger   observability.Logger
}

// EvaluatorOption is a functional option for configuring the evaluator.
type EvaluatorOption func(*celEvaluator)

// WithLogger sets the logger for the evaluator.
func WithLogger(logger observability.Logger) EvaluatorOption {
	return func(e *celEvaluator) {
		e.logger = logger
	}
}

// NewEvaluator creates an expression evaluator backed by the given
// function registry. A nil registry gets the built-in helpers.
func NewEvaluator(registry *functions.Registry, opts ...EvaluatorOption) Evaluator {
	e := &celEvaluator{
		registry: registry,
		logger:   observability.NopLogger(),
	}

	if e.registry == nil {
		e.registry = functions.NewRegistry()
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Compile parses and type-checks an expression.
func (e *celEvaluator) Compile(expression string) (Program, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, util.NewExpressionError(evaluatorTag, "expression is empty", nil)
	}

	env, err := e.newEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}

	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		e.logger.Debug("expression compilation failed",
			observability.String("expression", expression),
			observability.Error(issues.Err()),
		)
		return nil, util.NewExpressionError(evaluatorTag, "compilation failed", issues.Err())
	}

	// Expressions whose static type can never be an object are rejected
	// here rather than on first evaluation.
	if !objectCompatible(ast.OutputType()) {
		return nil, util.NewExpressionError(evaluatorTag,
			fmt.Sprintf("expression must produce an object, not %s", ast.OutputType()), nil)
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, util.NewExpressionError(evaluatorTag, "program construction failed", err)
	}

	return &celProgram{program: program}, nil
}

// newEnv builds an environment with the document variable and the
// currently registered helper functions.
func (e *celEvaluator) newEnv() (*cel.Env, error) {
	opts := append([]cel.EnvOption{
		cel.Variable(DocumentVariable, cel.MapType(cel.StringType, cel.DynType)),
	}, e.registry.Options()...)
	return cel.NewEnv(opts...)
}

// objectCompatible reports whether the static type can hold an object.
func objectCompatible(t *cel.Type) bool {
	if t == nil {
		return true
	}
	switch t.Kind() {
	case types.MapKind, types.DynKind, types.AnyKind, types.TypeParamKind:
		return true
	default:
		return false
	}
}

// celProgram implements Program.
type celProgram struct {
	program cel.Program
}

// Eval evaluates the expression against a document.
func (p *celProgram) Eval(doc map[string]interface{}) (map[string]interface{}, error) {
	out, _, err := p.program.Eval(map[string]interface{}{
		DocumentVariable: doc,
	})
	if err != nil {
		return nil, fmt.Errorf("expression evaluation failed: %w", err)
	}

	// Normalize the result to a native JSON tree
	native, err := out.ConvertToNative(reflect.TypeOf(&structpb.Value{}))
	if err != nil {
		return nil, fmt.Errorf("expression result is not JSON-representable: %w", err)
	}

	result, ok := native.(*structpb.Value).AsInterface().(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expression must produce an object, got %s", out.Type().TypeName())
	}

	return result, nil
}

// Ensure implementations satisfy the interfaces.
var (
	_ Evaluator = (*celEvaluator)(nil)
	_ Program   = (*celProgram)(nil)
)
