package executor

import (
	"encoding/json"
	"time"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/types"
)

// DelayParams is the decoded Params for a NodeKindDelay node.
type DelayParams struct {
	DurationMS int `json:"duration_ms"`
}

// DelayExecutor pauses for the configured duration, bounded by the
// activation's deadline — a delay never outlives its execution.
type DelayExecutor struct{}

func NewDelayExecutor() *DelayExecutor { return &DelayExecutor{} }

func (e *DelayExecutor) Kind() types.NodeKind { return types.NodeKindDelay }

func (e *DelayExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	var params DelayParams
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return nil, errs.Wrap(errs.Internal, "invalid delay params", err)
	}

	timer := time.NewTimer(time.Duration(params.DurationMS) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C:
		return types.ValueArray{inputs["payload"]}, nil
	case <-ctx.Context().Done():
		return nil, errs.Wrap(errs.DeadlineExceeded, "delay node exceeded the execution deadline", ctx.Context().Err())
	}
}

func (e *DelayExecutor) Validate(node types.Node) error {
	var params DelayParams
	if len(node.Params) == 0 {
		return types.ErrMissingRequiredField("duration_ms")
	}
	if err := json.Unmarshal(node.Params, &params); err != nil {
		return types.ErrInvalidFieldValue("params", string(node.Params), err.Error())
	}
	if params.DurationMS <= 0 {
		return types.ErrInvalidFieldValue("duration_ms", params.DurationMS, "must be positive")
	}
	return nil
}
