package executor

import (
	"github.com/insanalamin/mechaway/pkg/types"
)

// WebhookParams is the decoded Params for a NodeKindWebhook node. Path is
// the webhook_path half of the Trigger Surface's (workflow_id,
// webhook_path) -> node_id lookup; "" is a valid, matchable path.
type WebhookParams struct {
	Path string `json:"path"`
}

// WebhookExecutor is the trigger executor for NodeKindWebhook. The trigger
// surface seeds the activation with the inbound request body under the
// "payload" input pin before the engine runs the node; Execute simply
// forwards it as the node's single output.
type WebhookExecutor struct{}

// NewWebhookExecutor creates a webhook trigger executor.
func NewWebhookExecutor() *WebhookExecutor { return &WebhookExecutor{} }

func (e *WebhookExecutor) Kind() types.NodeKind { return types.NodeKindWebhook }

func (e *WebhookExecutor) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	payload := inputs["payload"]
	return types.ValueArray{payload}, nil
}

func (e *WebhookExecutor) Validate(node types.Node) error {
	return nil
}
