package registry

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/graph"
	"github.com/insanalamin/mechaway/pkg/storage"
	"github.com/insanalamin/mechaway/pkg/types"
)

const workflowsTable = "_workflows"

// snapshot is an immutable view of one project's workflows, keyed by ID.
// A new snapshot is built and swapped in on every write; nothing mutates a
// published snapshot in place.
type snapshot struct {
	byID map[string]*types.Workflow
}

// Registry is the system of record for workflow definitions: durable in
// each project's SQLite database, mirrored into a lock-free in-memory
// snapshot per project for trigger dispatch.
type Registry struct {
	manager *storage.Manager

	mu        sync.Mutex // guards read-modify-write of a project's snapshot
	snapshots sync.Map   // project slug -> *atomic.Pointer[snapshot]
}

func NewRegistry(manager *storage.Manager) *Registry {
	return &Registry{manager: manager}
}

// Put validates, persists, and installs wf as the current definition for
// its ID, assigning a new ID and Version 1 if wf.ID is empty.
func (r *Registry) Put(ctx context.Context, projectSlug string, wf types.Workflow) (types.Workflow, error) {
	if wf.Name == "" {
		return types.Workflow{}, types.ErrMissingRequiredField("name")
	}
	if len(wf.Nodes) == 0 {
		return types.Workflow{}, types.ErrMissingRequiredField("nodes")
	}
	if err := validateGraph(wf); err != nil {
		return types.Workflow{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.loadSnapshot(ctx, projectSlug)
	if err != nil {
		return types.Workflow{}, err
	}

	if wf.ID == "" {
		wf.ID = uuid.New().String()
		wf.Version = 1
	} else if existing, ok := snap.byID[wf.ID]; ok {
		wf.Version = existing.Version + 1
	} else {
		wf.Version = 1
	}
	wf.ProjectID = projectSlug
	wf.UpdatedAt = time.Now().UTC()

	if err := r.persist(ctx, projectSlug, wf); err != nil {
		return types.Workflow{}, err
	}

	next := cloneSnapshot(snap)
	cp := wf
	next.byID[wf.ID] = &cp
	r.publish(projectSlug, next)

	return wf, nil
}

// Get returns the current definition for id within projectSlug.
func (r *Registry) Get(ctx context.Context, projectSlug, id string) (*types.Workflow, error) {
	snap, err := r.snapshotFor(ctx, projectSlug)
	if err != nil {
		return nil, err
	}
	wf, ok := snap.byID[id]
	if !ok {
		return nil, errs.Newf(errs.UnknownWorkflow, "workflow %q not found", id)
	}
	return wf, nil
}

// List returns every workflow currently registered for projectSlug.
func (r *Registry) List(ctx context.Context, projectSlug string) ([]*types.Workflow, error) {
	snap, err := r.snapshotFor(ctx, projectSlug)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Workflow, 0, len(snap.byID))
	for _, wf := range snap.byID {
		out = append(out, wf)
	}
	return out, nil
}

// Delete removes a workflow definition from both storage and the snapshot.
func (r *Registry) Delete(ctx context.Context, projectSlug, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.loadSnapshot(ctx, projectSlug)
	if err != nil {
		return err
	}
	if _, ok := snap.byID[id]; !ok {
		return errs.Newf(errs.UnknownWorkflow, "workflow %q not found", id)
	}

	ps, err := r.manager.ForProject(projectSlug)
	if err != nil {
		return err
	}
	remaining := make([]map[string]types.Value, 0, len(snap.byID)-1)
	for wfID, wf := range snap.byID {
		if wfID == id {
			continue
		}
		blob, err := json.Marshal(wf)
		if err != nil {
			return errs.Wrap(errs.Internal, "failed to marshal workflow", err)
		}
		remaining = append(remaining, map[string]types.Value{"id": wfID, "data": string(blob)})
	}
	if err := ps.ReplaceTable(ctx, workflowsTable, remaining); err != nil {
		return err
	}

	next := cloneSnapshot(snap)
	delete(next.byID, id)
	r.publish(projectSlug, next)
	return nil
}

// CurrentSnapshot returns the workflows currently installed for
// projectSlug, reloading from storage on first access. Used by
// pkg/cron and pkg/httpserver to resolve a trigger without a storage round
// trip on every fire.
func (r *Registry) CurrentSnapshot(ctx context.Context, projectSlug string) (map[string]*types.Workflow, error) {
	snap, err := r.snapshotFor(ctx, projectSlug)
	if err != nil {
		return nil, err
	}
	return snap.byID, nil
}

func (r *Registry) snapshotFor(ctx context.Context, projectSlug string) (*snapshot, error) {
	if ptr, ok := r.snapshots.Load(projectSlug); ok {
		if s := ptr.(*atomic.Pointer[snapshot]).Load(); s != nil {
			return s, nil
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadSnapshot(ctx, projectSlug)
}

// loadSnapshot returns the current published snapshot for projectSlug,
// loading it from storage the first time the project is seen. Callers
// must hold r.mu.
func (r *Registry) loadSnapshot(ctx context.Context, projectSlug string) (*snapshot, error) {
	if ptr, ok := r.snapshots.Load(projectSlug); ok {
		if s := ptr.(*atomic.Pointer[snapshot]).Load(); s != nil {
			return s, nil
		}
	}

	snap, err := r.loadFromStorage(ctx, projectSlug)
	if err != nil {
		return nil, err
	}
	r.publish(projectSlug, snap)
	return snap, nil
}

func (r *Registry) loadFromStorage(ctx context.Context, projectSlug string) (*snapshot, error) {
	ps, err := r.manager.ForProject(projectSlug)
	if err != nil {
		return nil, err
	}
	rows, err := ps.ReadRows(ctx, workflowsTable, 100000, 0, "")
	if err != nil {
		return nil, err
	}

	snap := &snapshot{byID: make(map[string]*types.Workflow, len(rows))}
	for _, row := range rows {
		blob, _ := row["data"].(string)
		var wf types.Workflow
		if err := json.Unmarshal([]byte(blob), &wf); err != nil {
			return nil, errs.Wrap(errs.Internal, "corrupt stored workflow", err)
		}
		cp := wf
		snap.byID[wf.ID] = &cp
	}
	return snap, nil
}

func (r *Registry) persist(ctx context.Context, projectSlug string, wf types.Workflow) error {
	ps, err := r.manager.ForProject(projectSlug)
	if err != nil {
		return err
	}
	snap, err := r.loadSnapshot(ctx, projectSlug)
	if err != nil {
		return err
	}

	rows := make([]map[string]types.Value, 0, len(snap.byID)+1)
	for wfID, existing := range snap.byID {
		if wfID == wf.ID {
			continue
		}
		blob, err := json.Marshal(existing)
		if err != nil {
			return errs.Wrap(errs.Internal, "failed to marshal workflow", err)
		}
		rows = append(rows, map[string]types.Value{"id": wfID, "data": string(blob)})
	}
	blob, err := json.Marshal(wf)
	if err != nil {
		return errs.Wrap(errs.Internal, "failed to marshal workflow", err)
	}
	rows = append(rows, map[string]types.Value{"id": wf.ID, "data": string(blob)})

	return ps.ReplaceTable(ctx, workflowsTable, rows)
}

// validateGraph rejects a workflow whose edges reference a node ID absent
// from wf.Nodes, or whose node/edge set contains a cycle, so an invalid
// definition never reaches storage or the published snapshot.
func validateGraph(wf types.Workflow) error {
	nodeIDs := make(map[string]bool, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodeIDs[n.ID] = true
	}
	for _, e := range wf.Edges {
		if !nodeIDs[e.FromNodeID] {
			return errs.Newf(errs.InvalidGraph, "edge references unknown node %q", e.FromNodeID)
		}
		if !nodeIDs[e.ToNodeID] {
			return errs.Newf(errs.InvalidGraph, "edge references unknown node %q", e.ToNodeID)
		}
	}
	if err := graph.New(wf.Nodes, wf.Edges).DetectCycles(); err != nil {
		return errs.Wrap(errs.InvalidGraph, "workflow graph contains a cycle", err)
	}
	return nil
}

func (r *Registry) publish(projectSlug string, snap *snapshot) {
	ptrAny, _ := r.snapshots.LoadOrStore(projectSlug, &atomic.Pointer[snapshot]{})
	ptrAny.(*atomic.Pointer[snapshot]).Store(snap)
}

func cloneSnapshot(s *snapshot) *snapshot {
	next := &snapshot{byID: make(map[string]*types.Workflow, len(s.byID)+1)}
	for k, v := range s.byID {
		next.byID[k] = v
	}
	return next
}
