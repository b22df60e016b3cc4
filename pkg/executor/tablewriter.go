package executor

import (
	"encoding/json"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/types"
)

// TableWriterParams is the decoded Params for a NodeKindTableWriter node.
type TableWriterParams struct {
	Table string `json:"table"`
	// Columns names the input pins that make up the written row; each
	// entry is both the pin name to resolve and the column key stored
	// under it.
	Columns []string `json:"columns"`
}

// TableWriterExecutor writes a single row, built from its resolved input
// pins, into a project table, materializing the table on first use.
type TableWriterExecutor struct{}

func NewTableWriterExecutor() *TableWriterExecutor { return &TableWriterExecutor{} }

func (e *TableWriterExecutor) Kind() types.NodeKind { return types.NodeKindTableWriter }

func (e *TableWriterExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	var params TableWriterParams
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return nil, errs.Wrap(errs.Internal, "invalid table_writer params", err)
	}

	row := make(map[string]types.Value, len(params.Columns))
	for _, col := range params.Columns {
		row[col] = inputs[col]
	}

	insertedID, err := ctx.ProjectDB().WriteRow(ctx.Context(), params.Table, row)
	if err != nil {
		return nil, err
	}

	return types.ValueArray{map[string]types.Value{
		"_inserted_id":   insertedID,
		"_rows_affected": 1,
	}}, nil
}

func (e *TableWriterExecutor) Validate(node types.Node) error {
	var params TableWriterParams
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
