package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/insanalamin/mechaway/pkg/binding"
	"github.com/insanalamin/mechaway/pkg/config"
	"github.com/insanalamin/mechaway/pkg/executor"
	"github.com/insanalamin/mechaway/pkg/logging"
	"github.com/insanalamin/mechaway/pkg/observer"
	"github.com/insanalamin/mechaway/pkg/sandbox"
	"github.com/insanalamin/mechaway/pkg/secrets"
	"github.com/insanalamin/mechaway/pkg/storage"
	"github.com/insanalamin/mechaway/pkg/types"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg := executor.NewRegistry()
	reg.MustRegister(executor.NewWebhookExecutor())
	reg.MustRegister(executor.NewCronExecutor())
	reg.MustRegister(executor.NewConditionExecutor())
	reg.MustRegister(executor.NewSwitchExecutor())
	reg.MustRegister(executor.NewScriptExecutor(sandbox.New()))
	reg.MustRegister(executor.NewDelayExecutor())
	reg.MustRegister(executor.NewCacheExecutor())

	mgr := storage.NewManager(t.TempDir())
	secretStore := secrets.NewStore(mgr, "test-key-material")
	bindings := binding.NewResolver(sandbox.New(), secretStore)

	return New(reg, bindings, secretStore, mgr, config.Default(), observer.NewManager(), logging.New(logging.DefaultConfig()))
}

func handle(s string) *string { return &s }

func conditionBranchWorkflow() *types.Workflow {
	return &types.Workflow{
		ID:   "wf-branching",
		Name: "approve-or-reject",
		Nodes: []types.Node{
			{ID: "trigger", Kind: types.NodeKindWebhook},
			{
				ID:     "check",
				Kind:   types.NodeKindCondition,
				Params: json.RawMessage(`{"expression":"flag == true"}`),
				InputPins: map[string]types.Binding{
					"flag": {Kind: types.BindingJSONPath, Path: "trigger.ok"},
				},
			},
			{ID: "yes", Kind: types.NodeKindScript, Params: json.RawMessage(`{"script":"\"approved\""}`)},
			{ID: "no", Kind: types.NodeKindScript, Params: json.RawMessage(`{"script":"\"rejected\""}`)},
		},
		Edges: []types.Edge{
			{FromNodeID: "trigger", ToNodeID: "check"},
			{FromNodeID: "check", ToNodeID: "yes", SourceHandle: handle("true")},
			{FromNodeID: "check", ToNodeID: "no", SourceHandle: handle("false")},
		},
	}
}

func TestEngine_Activate_TrueBranchRuns(t *testing.T) {
	eng := newTestEngine(t)
	wf := conditionBranchWorkflow()

	result, err := eng.Activate(context.Background(), "acme-labs", wf, "trigger", map[string]types.Value{"ok": true})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	if _, ran := result.NodeResults["yes"]; !ran {
		t.Fatal("expected the true branch (\"yes\") to have executed")
	}
	if _, ran := result.NodeResults["no"]; ran {
		t.Fatal("expected the false branch (\"no\") to have been skipped")
	}
	if len(result.FinalOutput) != 1 || result.FinalOutput[0] != "approved" {
		t.Fatalf("expected final output [\"approved\"], got %v", result.FinalOutput)
	}
}

func TestEngine_Activate_FalseBranchRuns(t *testing.T) {
	eng := newTestEngine(t)
	wf := conditionBranchWorkflow()

	result, err := eng.Activate(context.Background(), "acme-labs", wf, "trigger", map[string]types.Value{"ok": false})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	if _, ran := result.NodeResults["yes"]; ran {
		t.Fatal("expected the true branch (\"yes\") to have been skipped")
	}
	if _, ran := result.NodeResults["no"]; !ran {
		t.Fatal("expected the false branch (\"no\") to have executed")
	}
	if len(result.FinalOutput) != 1 || result.FinalOutput[0] != "rejected" {
		t.Fatalf("expected final output [\"rejected\"], got %v", result.FinalOutput)
	}
}

func TestEngine_Activate_WebhookPayloadSeeded(t *testing.T) {
	eng := newTestEngine(t)
	wf := &types.Workflow{
		ID:   "wf-webhook",
		Name: "echo",
		Nodes: []types.Node{
			{ID: "trigger", Kind: types.NodeKindWebhook},
		},
	}

	result, err := eng.Activate(context.Background(), "acme-labs", wf, "trigger", map[string]types.Value{"hello": "world"})
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	output, ok := result.NodeResults["trigger"]
	if !ok || len(output) != 1 {
		t.Fatalf("expected trigger output, got %v", result.NodeResults)
	}
	payload, ok := output[0].(map[string]types.Value)
	if !ok || payload["hello"] != "world" {
		t.Fatalf("expected echoed payload, got %v", output[0])
	}
}

func TestEngine_Activate_UnknownTriggerNode(t *testing.T) {
	eng := newTestEngine(t)
	wf := &types.Workflow{
		ID:    "wf-empty",
		Name:  "empty",
		Nodes: []types.Node{{ID: "trigger", Kind: types.NodeKindWebhook}},
	}

	_, err := eng.Activate(context.Background(), "acme-labs", wf, "does-not-exist", nil)
	if err == nil {
		t.Fatal("expected an error for an unknown trigger node")
	}
}

func TestEngine_Activate_NodeExecutionLimitExceeded(t *testing.T) {
	eng := newTestEngine(t)
	cfg := config.Default()
	cfg.MaxNodeExecutions = 1
	eng.config = cfg

	wf := &types.Workflow{
		ID:   "wf-chain",
		Name: "chain",
		Nodes: []types.Node{
			{ID: "trigger", Kind: types.NodeKindWebhook},
			{ID: "step", Kind: types.NodeKindScript, Params: json.RawMessage(`{"script":"1"}`)},
		},
		Edges: []types.Edge{{FromNodeID: "trigger", ToNodeID: "step"}},
	}

	_, err := eng.Activate(context.Background(), "acme-labs", wf, "trigger", nil)
	if err == nil {
		t.Fatal("expected the node execution budget to be exceeded")
	}
}
