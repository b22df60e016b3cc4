package executor

import (
	"encoding/json"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/types"
)

// SwitchCase is one candidate branch of a NodeKindSwitch node.
type SwitchCase struct {
	// Name identifies the output edge (Edge.SourceHandle) this case fires.
	Name string `json:"name"`
	// Expression is a CEL predicate; the first case whose expression
	// evaluates true wins.
	Expression string `json:"expression"`
}

// SwitchParams is the decoded Params for a NodeKindSwitch node.
type SwitchParams struct {
	Cases   []SwitchCase `json:"cases"`
	Default string       `json:"default,omitempty"` // branch name used when no case matches
}

// SwitchExecutor evaluates each case's CEL predicate in order and reports
// the first match's name as its output, used by the engine to select which
// outgoing edges fire.
type SwitchExecutor struct{}

func NewSwitchExecutor() *SwitchExecutor { return &SwitchExecutor{} }

func (e *SwitchExecutor) Kind() types.NodeKind { return types.NodeKindSwitch }

func (e *SwitchExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	var params SwitchParams
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return nil, errs.Wrap(errs.Internal, "invalid switch params", err)
	}

	for _, c := range params.Cases {
		matched, err := evalCELBool(c.Expression, inputs)
		if err != nil {
			return nil, err
		}
		if matched {
			return types.ValueArray{c.Name}, nil
		}
	}

	if params.Default != "" {
		return types.ValueArray{params.Default}, nil
	}

	return nil, errs.New(errs.BindingEvalError, "switch node: no case matched and no default branch configured")
}

func (e *SwitchExecutor) Validate(node types.Node) error {
	var params SwitchParams
	if len(node.Params) == 0 {
		return types.ErrMissingRequiredField("cases")
	}
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return types.ErrInvalidFieldValue("params", string(node.Params), err.Error())
	}
	if len(params.Cases) == 0 {
		return types.ErrMissingRequiredField("cases")
	}
	for _, c := range params.Cases {
		if c.Name == "" {
			return types.ErrMissingRequiredField("cases[].name")
		}
		if c.Expression == "" {
			return types.ErrMissingRequiredField("cases[].expression")
		}
	}
	return nil
}
