package executor

import (
	"encoding/json"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/types"
)

// TableQueryParams is the decoded Params for a NodeKindTableQuery node.
type TableQueryParams struct {
	Table string `json:"table"`
	// Where is a SQL predicate using "?" placeholders, bound positionally
	// against the "args" input pin — never string-interpolated.
	Where string `json:"where"`
	// Limit caps the number of rows returned; bounded to [1, 1000] and
	// defaulting to the executor's configured maxLimit when unset.
	Limit int `json:"limit"`
	// OrderBy is "column" or "column asc|desc"; "" orders by insertion.
	OrderBy string `json:"order_by"`
}

// TableQueryExecutor runs a parameterized predicate against a project
// table.
type TableQueryExecutor struct {
	maxLimit int
}

func NewTableQueryExecutor(maxLimit int) *TableQueryExecutor {
	return &TableQueryExecutor{maxLimit: maxLimit}
}

func (e *TableQueryExecutor) Kind() types.NodeKind { return types.NodeKindTableQuery }

func (e *TableQueryExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	var params TableQueryParams
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return nil, errs.Wrap(errs.Internal, "invalid table_query params", err)
	}

	var args []types.Value
	if raw, ok := inputs["args"]; ok && raw != nil {
		arr, ok := raw.([]types.Value)
		if !ok {
			return nil, errs.New(errs.BindingEvalError, "\"args\" input must be an array")
		}
		args = arr
	}

	limit := clampLimit(params.Limit, e.maxLimit)
	rows, err := ctx.ProjectDB().QueryRows(ctx.Context(), params.Table, params.Where, args, limit, params.OrderBy)
	if err != nil {
		return nil, err
	}

	out := make(types.ValueArray, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (e *TableQueryExecutor) Validate(node types.Node) error {
	var params TableQueryParams
	if len(node.Params) == 0 {
		return types.ErrMissingRequiredField("table")
	}
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return types.ErrInvalidFieldValue("params", string(node.Params), err.Error())
	}
	if params.Table == "" {
		return types.ErrMissingRequiredField("table")
	}
	return nil
}

// hardMaxLimit is the absolute ceiling on any per-request table limit,
// regardless of a node's configured maxLimit.
const hardMaxLimit = 1000

// clampLimit bounds a per-request limit to [1, min(maxLimit, hardMaxLimit)],
// falling back to that ceiling when the caller didn't specify one.
func clampLimit(requested, maxLimit int) int {
	ceiling := maxLimit
	if ceiling <= 0 || ceiling > hardMaxLimit {
		ceiling = hardMaxLimit
	}
	if requested <= 0 {
		return ceiling
	}
	if requested > ceiling {
		return ceiling
	}
	return requested
}
