package cron

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/insanalamin/mechaway/pkg/executor"
	"github.com/insanalamin/mechaway/pkg/logging"
	"github.com/insanalamin/mechaway/pkg/registry"
	"github.com/insanalamin/mechaway/pkg/types"
)

// Activator runs one DAG activation starting from a trigger node. Declared
// here rather than imported from pkg/engine to avoid a cycle: pkg/engine
// depends on pkg/cron transitively through wiring in cmd/server, not the
// other way around.
type Activator interface {
	Activate(ctx context.Context, projectSlug string, wf *types.Workflow, triggerNodeID string, payload types.Value) (*types.Result, error)
}

type entryKey struct {
	projectSlug   string
	workflowID    string
	triggerNodeID string
}

// Scheduler keeps a robfig/cron/v3 Cron's entries synchronized with the
// Cron-trigger nodes currently registered for a set of watched projects.
// Reconcile diffs the desired schedule set against the installed one on
// every call, so a workflow edit takes effect on the next reconcile without
// restarting the process. Schedules are parsed with a leading seconds
// field, so expressions must have 6 fields ("*/5 * * * * *"); a 5-field
// expression ("0 * * * *") is rejected as invalid.
type Scheduler struct {
	cron      *robfigcron.Cron
	registry  *registry.Registry
	activator Activator
	logger    *logging.Logger

	mu        sync.Mutex
	watched   map[string]bool
	installed map[entryKey]robfigcron.EntryID
	inflight  map[entryKey]bool
}

func NewScheduler(reg *registry.Registry, activator Activator, logger *logging.Logger) *Scheduler {
	return &Scheduler{
		cron:      robfigcron.New(robfigcron.WithSeconds()),
		registry:  reg,
		activator: activator,
		logger:    logger,
		watched:   make(map[string]bool),
		installed: make(map[entryKey]robfigcron.EntryID),
		inflight:  make(map[entryKey]bool),
	}
}

// Start begins running installed cron entries in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop blocks until in-flight cron jobs finish, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch adds projectSlug to the set reconciled on every Reconcile call.
func (s *Scheduler) Watch(projectSlug string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watched[projectSlug] = true
}

// Reconcile diffs every watched project's current Cron-trigger nodes
// against the scheduler's installed entries, removing stale entries,
// replacing entries whose schedule changed, and adding new ones.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	s.mu.Lock()
	projects := make([]string, 0, len(s.watched))
	for p := range s.watched {
		projects = append(projects, p)
	}
	s.mu.Unlock()

	desired := make(map[entryKey]string) // key -> cron schedule
	for _, projectSlug := range projects {
		snap, err := s.registry.CurrentSnapshot(ctx, projectSlug)
		if err != nil {
			s.logger.WithError(err).Error("cron reconcile: failed to load workflow snapshot")
			continue
		}
		for _, wf := range snap {
			for _, node := range wf.Nodes {
				if node.Kind != types.NodeKindCron {
					continue
				}
				var params executor.CronParams
				if err := json.Unmarshal(node.Params, &params); err != nil || params.Schedule == "" {
					continue
				}
				key := entryKey{projectSlug: projectSlug, workflowID: wf.ID, triggerNodeID: node.ID}
				desired[key] = params.Schedule
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, entryID := range s.installed {
		if _, ok := desired[key]; !ok {
			s.cron.Remove(entryID)
			delete(s.installed, key)
		}
	}

	parser := robfigcron.NewParser(robfigcron.Second | robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow | robfigcron.Descriptor)
	for key, schedule := range desired {
		if entryID, ok := s.installed[key]; ok {
			parsed, err := parser.Parse(schedule)
			if err == nil && reflect.DeepEqual(s.cron.Entry(entryID).Schedule, parsed) {
				continue
			}
			// The schedule changed: replace the old entry.
			s.cron.Remove(entryID)
			delete(s.installed, key)
		}
		k := key
		entryID, err := s.cron.AddFunc(schedule, func() { s.fire(k) })
		if err != nil {
			s.logger.WithField("workflow_id", k.workflowID).WithError(err).Error("cron reconcile: invalid schedule")
			continue
		}
		s.installed[k] = entryID
	}

	return nil
}

// fire runs one scheduled activation for key. A tick that arrives while the
// previous activation for the same trigger is still running is dropped
// rather than run concurrently.
func (s *Scheduler) fire(key entryKey) {
	s.mu.Lock()
	if s.inflight[key] {
		s.mu.Unlock()
		s.logger.WithWorkflowID(key.workflowID).Warn("cron tick skipped: previous activation still running")
		return
	}
	s.inflight[key] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
	}()

	ctx := context.Background()
	snap, err := s.registry.CurrentSnapshot(ctx, key.projectSlug)
	if err != nil {
		s.logger.WithError(err).Error("cron fire: failed to load workflow")
		return
	}
	wf, ok := snap[key.workflowID]
	if !ok {
		return // workflow was deleted since the last reconcile
	}

	payload := map[string]types.Value{}
	if _, err := s.activator.Activate(ctx, key.projectSlug, wf, key.triggerNodeID, payload); err != nil {
		s.logger.WithWorkflowID(key.workflowID).WithError(err).Error("scheduled activation failed")
	}
}
