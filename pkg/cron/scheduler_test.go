package cron

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/insanalamin/mechaway/pkg/logging"
	"github.com/insanalamin/mechaway/pkg/registry"
	"github.com/insanalamin/mechaway/pkg/storage"
	"github.com/insanalamin/mechaway/pkg/types"
)

type recordingActivator struct {
	mu    sync.Mutex
	fired []string
}

func (a *recordingActivator) Activate(_ context.Context, _ string, wf *types.Workflow, triggerNodeID string, _ types.Value) (*types.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fired = append(a.fired, wf.ID+"/"+triggerNodeID)
	return &types.Result{WorkflowID: wf.ID}, nil
}

func (a *recordingActivator) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.fired)
}

func mustParams(t *testing.T, schedule string) json.RawMessage {
	t.Helper()
	blob, err := json.Marshal(map[string]string{"schedule": schedule})
	if err != nil {
		t.Fatalf("failed to marshal cron params: %v", err)
	}
	return blob
}

func TestScheduler_ReconcileInstallsAndRemovesEntries(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	reg := registry.NewRegistry(mgr)
	activator := &recordingActivator{}
	logger := logging.New(logging.DefaultConfig())
	sched := NewScheduler(reg, activator, logger)
	ctx := context.Background()

	wf, err := reg.Put(ctx, "acme-labs", types.Workflow{
		Name: "nightly-sync",
		Nodes: []types.Node{
			{ID: "trigger", Kind: types.NodeKindCron, Params: mustParams(t, "*/5 * * * * *")},
		},
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	sched.Watch("acme-labs")
	if err := sched.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(sched.installed) != 1 {
		t.Fatalf("expected 1 installed entry, got %d", len(sched.installed))
	}

	if err := reg.Delete(ctx, "acme-labs", wf.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := sched.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(sched.installed) != 0 {
		t.Fatalf("expected entries removed after workflow deletion, got %d", len(sched.installed))
	}
}

func TestScheduler_FireInvokesActivator(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	reg := registry.NewRegistry(mgr)
	activator := &recordingActivator{}
	logger := logging.New(logging.DefaultConfig())
	sched := NewScheduler(reg, activator, logger)
	ctx := context.Background()

	wf, err := reg.Put(ctx, "acme-labs", types.Workflow{
		Name: "every-tick",
		Nodes: []types.Node{
			{ID: "trigger", Kind: types.NodeKindCron, Params: mustParams(t, "* * * * * *")},
		},
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	sched.fire(entryKey{projectSlug: "acme-labs", workflowID: wf.ID, triggerNodeID: "trigger"})

	if activator.count() != 1 {
		t.Fatalf("expected activator to fire once, got %d", activator.count())
	}
}

type blockingActivator struct {
	mu      sync.Mutex
	fired   int
	started chan struct{}
	release chan struct{}
}

func (a *blockingActivator) Activate(_ context.Context, _ string, wf *types.Workflow, triggerNodeID string, _ types.Value) (*types.Result, error) {
	a.mu.Lock()
	a.fired++
	a.mu.Unlock()
	a.started <- struct{}{}
	<-a.release
	return &types.Result{WorkflowID: wf.ID}, nil
}

func (a *blockingActivator) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.fired
}

func TestScheduler_FireSkipsTickWhilePreviousStillRunning(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	reg := registry.NewRegistry(mgr)
	activator := &blockingActivator{started: make(chan struct{}, 1), release: make(chan struct{})}
	logger := logging.New(logging.DefaultConfig())
	sched := NewScheduler(reg, activator, logger)
	ctx := context.Background()

	wf, err := reg.Put(ctx, "acme-labs", types.Workflow{
		Name: "slow-job",
		Nodes: []types.Node{
			{ID: "trigger", Kind: types.NodeKindCron, Params: mustParams(t, "* * * * * *")},
		},
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	key := entryKey{projectSlug: "acme-labs", workflowID: wf.ID, triggerNodeID: "trigger"}

	go sched.fire(key)
	<-activator.started

	sched.fire(key) // second tick while the first is still in flight

	close(activator.release)

	if got := activator.count(); got != 1 {
		t.Fatalf("expected the overlapping tick to be skipped, got %d activations", got)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	reg := registry.NewRegistry(mgr)
	sched := NewScheduler(reg, &recordingActivator{}, logging.New(logging.DefaultConfig()))
	sched.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sched.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
