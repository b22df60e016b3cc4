package executor

import (
	"encoding/json"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/types"
)

// TableReaderParams is the decoded Params for a NodeKindTableReader node.
type TableReaderParams struct {
	Table string `json:"table"`
	// Limit caps the number of rows returned; bounded to [1, 1000] and
	// defaulting to the executor's configured maxLimit when unset.
	Limit int `json:"limit"`
	// OrderBy is "column" or "column asc|desc"; "" orders by insertion.
	OrderBy string `json:"order_by"`
}

// TableReaderExecutor returns a page of rows from a project table, in
// insertion order unless order_by is set.
type TableReaderExecutor struct {
	maxLimit int
}

func NewTableReaderExecutor(maxLimit int) *TableReaderExecutor {
	return &TableReaderExecutor{maxLimit: maxLimit}
}

func (e *TableReaderExecutor) Kind() types.NodeKind { return types.NodeKindTableReader }

func (e *TableReaderExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	var params TableReaderParams
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return nil, errs.Wrap(errs.Internal, "invalid table_reader params", err)
	}

	limit := clampLimit(params.Limit, e.maxLimit)

	offset := 0
	if o, ok := inputs["offset"].(float64); ok {
		offset = int(o)
	}

	rows, err := ctx.ProjectDB().ReadRows(ctx.Context(), params.Table, limit, offset, params.OrderBy)
	if err != nil {
		return nil, err
	}

	out := make(types.ValueArray, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out, nil
}

func (e *TableReaderExecutor) Validate(node types.Node) error {
	var params TableReaderParams
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
