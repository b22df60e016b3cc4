package executor

import (
	"encoding/json"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/sandbox"
	"github.com/insanalamin/mechaway/pkg/types"
)

// ScriptParams is the decoded Params for a NodeKindScript node.
type ScriptParams struct {
	// Script is a single expr-lang expression evaluated with the node's
	// concatenated predecessor outputs bound to "data" (and, for
	// convenience, exposed under "input" as every other binding is).
	Script string `json:"script"`
}

// ScriptExecutor evaluates a sandboxed expression against a node's incoming
// data array — the predecessor outputs concatenated in edge-declaration
// order, the same array input-pin bindings see.
type ScriptExecutor struct {
	sandbox *sandbox.Sandbox
}

// NewScriptExecutor creates a Script node executor backed by sb.
func NewScriptExecutor(sb *sandbox.Sandbox) *ScriptExecutor {
	return &ScriptExecutor{sandbox: sb}
}

func (e *ScriptExecutor) Kind() types.NodeKind { return types.NodeKindScript }

func (e *ScriptExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	var params ScriptParams
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return nil, errs.Wrap(errs.Internal, "invalid script params", err)
	}

	data, _ := inputs["data"].(types.ValueArray)
	env := sandbox.BuildEnv(map[string]interface{}{"data": data})
	out, err := e.sandbox.Eval(ctx.Context(), params.Script, env)
	if err != nil {
		return nil, err
	}
	return types.ValueArray{out}, nil
}

func (e *ScriptExecutor) Validate(node types.Node) error {
	var params ScriptParams
	if len(node.Params) == 0 {
		return types.ErrMissingRequiredField("script")
	}
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return types.ErrInvalidFieldValue("params", string(node.Params), err.Error())
	}
	if params.Script == "" {
		return types.ErrMissingRequiredField("script")
	}
	return nil
}
