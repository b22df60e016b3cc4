package registry

import (
	"context"
	"testing"

	"github.com/insanalamin/mechaway/pkg/storage"
	"github.com/insanalamin/mechaway/pkg/types"
)

func TestRegistry_PutAndGet(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	reg := NewRegistry(mgr)
	ctx := context.Background()

	wf := types.Workflow{
		Name:  "sync-customers",
		Nodes: []types.Node{{ID: "trigger", Kind: types.NodeKindWebhook}},
	}

	saved, err := reg.Put(ctx, "acme-labs", wf)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected Put to assign an ID")
	}
	if saved.Version != 1 {
		t.Errorf("expected version 1 for new workflow, got %d", saved.Version)
	}

	got, err := reg.Get(ctx, "acme-labs", saved.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "sync-customers" {
		t.Errorf("expected name to round-trip, got %q", got.Name)
	}
}

func TestRegistry_PutBumpsVersion(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	reg := NewRegistry(mgr)
	ctx := context.Background()

	wf := types.Workflow{Name: "v1", Nodes: []types.Node{{ID: "a", Kind: types.NodeKindWebhook}}}
	saved, err := reg.Put(ctx, "acme-labs", wf)
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	saved.Name = "v2"
	updated, err := reg.Put(ctx, "acme-labs", saved)
	if err != nil {
		t.Fatalf("Put update failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version bumped to 2, got %d", updated.Version)
	}
}

func TestRegistry_Get_Unknown(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	reg := NewRegistry(mgr)
	if _, err := reg.Get(context.Background(), "acme-labs", "nope"); err == nil {
		t.Fatal("expected error for unknown workflow id")
	}
}

func TestRegistry_Delete(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	reg := NewRegistry(mgr)
	ctx := context.Background()

	saved, err := reg.Put(ctx, "acme-labs", types.Workflow{Name: "temp", Nodes: []types.Node{{ID: "a", Kind: types.NodeKindCron}}})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := reg.Delete(ctx, "acme-labs", saved.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := reg.Get(ctx, "acme-labs", saved.ID); err == nil {
		t.Fatal("expected deleted workflow to be gone")
	}
}

func TestRegistry_PutRejectsCyclicGraph(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	reg := NewRegistry(mgr)
	ctx := context.Background()

	wf := types.Workflow{
		Name: "loops-forever",
		Nodes: []types.Node{
			{ID: "a", Kind: types.NodeKindWebhook},
			{ID: "b", Kind: types.NodeKindScript},
		},
		Edges: []types.Edge{
			{FromNodeID: "a", ToNodeID: "b"},
			{FromNodeID: "b", ToNodeID: "a"},
		},
	}

	if _, err := reg.Put(ctx, "acme-labs", wf); err == nil {
		t.Fatal("expected Put to reject a cyclic graph")
	}
	if list, err := reg.List(ctx, "acme-labs"); err != nil || len(list) != 0 {
		t.Fatalf("expected the cyclic workflow to be absent from the snapshot, got %v (err=%v)", list, err)
	}
}

func TestRegistry_PutRejectsDanglingEdge(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	reg := NewRegistry(mgr)
	ctx := context.Background()

	wf := types.Workflow{
		Name:  "dangling",
		Nodes: []types.Node{{ID: "a", Kind: types.NodeKindWebhook}},
		Edges: []types.Edge{{FromNodeID: "a", ToNodeID: "ghost"}},
	}

	if _, err := reg.Put(ctx, "acme-labs", wf); err == nil {
		t.Fatal("expected Put to reject an edge referencing an unknown node")
	}
	if list, err := reg.List(ctx, "acme-labs"); err != nil || len(list) != 0 {
		t.Fatalf("expected the invalid workflow to be absent from the snapshot, got %v (err=%v)", list, err)
	}
}

func TestRegistry_ProjectIsolation(t *testing.T) {
	mgr := storage.NewManager(t.TempDir())
	reg := NewRegistry(mgr)
	ctx := context.Background()

	saved, err := reg.Put(ctx, "project-a", types.Workflow{Name: "a-only", Nodes: []types.Node{{ID: "a", Kind: types.NodeKindWebhook}}})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := reg.Get(ctx, "project-b", saved.ID); err == nil {
		t.Fatal("expected project-b to not see project-a's workflow")
	}
}

func TestRegistry_PersistsAcrossNewRegistryInstance(t *testing.T) {
	dir := t.TempDir()
	mgr := storage.NewManager(dir)
	reg := NewRegistry(mgr)
	ctx := context.Background()

	saved, err := reg.Put(ctx, "acme-labs", types.Workflow{Name: "durable", Nodes: []types.Node{{ID: "a", Kind: types.NodeKindWebhook}}})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	mgr2 := storage.NewManager(dir)
	reg2 := NewRegistry(mgr2)
	got, err := reg2.Get(ctx, "acme-labs", saved.ID)
	if err != nil {
		t.Fatalf("expected workflow to survive a fresh Registry over the same data dir: %v", err)
	}
	if got.Name != "durable" {
		t.Errorf("expected name to round-trip, got %q", got.Name)
	}
}
