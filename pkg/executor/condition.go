package executor

import (
	"encoding/json"

	"github.com/google/cel-go/cel"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/types"
)

// ConditionParams is the decoded Params for a NodeKindCondition node.
type ConditionParams struct {
	// Expression is a CEL predicate evaluated against the resolved
	// inputs; its result selects the "true" or "false" output edge.
	Expression string `json:"expression"`
}

// ConditionExecutor evaluates a boolean CEL expression and reports the
// result both as its output value and as the branch name ("true"/"false")
// the engine uses to pick which outgoing edges fire.
type ConditionExecutor struct{}

func NewConditionExecutor() *ConditionExecutor { return &ConditionExecutor{} }

func (e *ConditionExecutor) Kind() types.NodeKind { return types.NodeKindCondition }

func (e *ConditionExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	var params ConditionParams
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return nil, errs.Wrap(errs.Internal, "invalid condition params", err)
	}

	result, err := evalCELBool(params.Expression, inputs)
	if err != nil {
		return nil, err
	}

	return types.ValueArray{result}, nil
}

func (e *ConditionExecutor) Validate(node types.Node) error {
	var params ConditionParams
	if len(node.Params) == 0 {
		return types.ErrMissingRequiredField("expression")
	}
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return types.ErrInvalidFieldValue("params", string(node.Params), err.Error())
	}
	if params.Expression == "" {
		return types.ErrMissingRequiredField("expression")
	}
	return nil
}

// evalCELBool compiles and evaluates expr as a CEL boolean predicate
// against inputs, exposed under a single "input" variable plus each pin
// name as a top-level variable.
func evalCELBool(expr string, inputs map[string]types.Value) (bool, error) {
	opts := []cel.EnvOption{cel.Variable("input", cel.DynType)}
	vars := map[string]interface{}{"input": inputs}
	for k, v := range inputs {
		opts = append(opts, cel.Variable(k, cel.DynType))
		vars[k] = v
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return false, errs.Wrap(errs.ScriptCompileError, "failed to build CEL environment", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, errs.Wrap(errs.ScriptCompileError, "CEL expression compilation failed", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return false, errs.Wrap(errs.ScriptCompileError, "failed to build CEL program", err)
	}

	out, _, err := program.Eval(vars)
	if err != nil {
		return false, errs.Wrap(errs.ScriptRuntimeError, "CEL expression evaluation failed", err)
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, errs.Newf(errs.ScriptRuntimeError, "condition expression did not return a boolean, got %T", out.Value())
	}
	return b, nil
}
