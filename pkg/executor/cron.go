package executor

import (
	"encoding/json"
	"time"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/types"
)

// CronParams is the decoded Params for a NodeKindCron node.
type CronParams struct {
	// Schedule is a 6-field cron expression (seconds field included),
	// consumed by the hot reload cron scheduler (pkg/cron) rather than by
	// this executor.
	Schedule string `json:"schedule"`
}

// CronExecutor is the trigger executor for NodeKindCron. The scheduler
// activates the workflow on each tick; Execute just stamps the trigger
// time and echoes the schedule that fired it.
type CronExecutor struct{}

// NewCronExecutor creates a cron trigger executor.
func NewCronExecutor() *CronExecutor { return &CronExecutor{} }

func (e *CronExecutor) Kind() types.NodeKind { return types.NodeKindCron }

func (e *CronExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	var p CronParams
	if err := json.Unmarshal(node.Params, &p); err != nil {
		return nil, errs.Wrap(errs.Internal, "invalid cron params", err)
	}
	return types.ValueArray{map[string]types.Value{
		"ts":       time.Now().UTC().Format(time.RFC3339),
		"schedule": p.Schedule,
	}}, nil
}

func (e *CronExecutor) Validate(node types.Node) error {
	var p CronParams
	if len(node.Params) == 0 {
		return types.ErrMissingRequiredField("schedule")
	}
	if err := json.Unmarshal(node.Params, &p); err != nil {
		return types.ErrInvalidFieldValue("params", string(node.Params), err.Error())
	}
	if p.Schedule == "" {
		return types.ErrMissingRequiredField("schedule")
	}
	return nil
}
