package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/insanalamin/mechaway/pkg/binding"
	"github.com/insanalamin/mechaway/pkg/config"
	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/executor"
	"github.com/insanalamin/mechaway/pkg/graph"
	"github.com/insanalamin/mechaway/pkg/logging"
	"github.com/insanalamin/mechaway/pkg/middleware"
	"github.com/insanalamin/mechaway/pkg/observer"
	"github.com/insanalamin/mechaway/pkg/secrets"
	"github.com/insanalamin/mechaway/pkg/storage"
	"github.com/insanalamin/mechaway/pkg/types"
)

// Engine runs DAG activations. It holds only process-wide collaborators;
// all per-activation state lives in activationContext, so a single Engine
// safely serves concurrent activations.
type Engine struct {
	executors   *executor.Registry
	bindings    *binding.Resolver
	secrets     *secrets.Store
	storage     *storage.Manager
	config      config.Config
	observerMgr *observer.Manager
	logger      *logging.Logger
	middleware  *middleware.Chain
}

// Use appends node-execution middleware (logging, metrics, retry, rate
// limiting, ...) that wraps every executor dispatch. Middleware run in the
// order added. Safe to call before the Engine serves its first activation;
// not safe to call concurrently with Activate.
func (e *Engine) Use(mw ...middleware.Middleware) *Engine {
	if e.middleware == nil {
		e.middleware = middleware.NewChain()
	}
	for _, m := range mw {
		e.middleware.Use(m)
	}
	return e
}

// New builds an Engine from its collaborators. observerMgr and logger may
// be nil, in which case a no-op manager and a default logger are used.
func New(
	executors *executor.Registry,
	bindings *binding.Resolver,
	secretStore *secrets.Store,
	storageManager *storage.Manager,
	cfg config.Config,
	observerMgr *observer.Manager,
	logger *logging.Logger,
) *Engine {
	if observerMgr == nil {
		observerMgr = observer.NewManager()
	}
	if logger == nil {
		logger = logging.New(logging.DefaultConfig())
	}
	return &Engine{
		executors:   executors,
		bindings:    bindings,
		secrets:     secretStore,
		storage:     storageManager,
		config:      cfg,
		observerMgr: observerMgr,
		logger:      logger,
	}
}

// generateExecutionID creates a unique execution identifier: 16 hex
// characters (8 random bytes).
func generateExecutionID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("exec_%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// Activate runs one DAG activation of wf starting at triggerNodeID, the
// node a Webhook or Cron event fired. Only nodes reachable from
// triggerNodeID execute; everything else in the workflow is left alone.
// payload becomes the trigger node's "payload" input unless its own input
// pin bindings already produced one.
func (e *Engine) Activate(ctx context.Context, projectSlug string, wf *types.Workflow, triggerNodeID string, payload types.Value) (*types.Result, error) {
	executionID := generateExecutionID()
	log := e.logger.WithWorkflowID(wf.ID).WithExecutionID(executionID).WithProjectSlug(projectSlug)

	g := graph.New(wf.Nodes, wf.Edges)
	order, err := g.TopologicalSort()
	if err != nil {
		log.WithError(err).Error("topological sort failed")
		return nil, errs.Wrap(errs.InvalidGraph, "workflow graph is invalid", err)
	}

	triggerExists := false
	for _, n := range wf.Nodes {
		if n.ID == triggerNodeID {
			triggerExists = true
			break
		}
	}
	if !triggerExists {
		return nil, errs.Newf(errs.UnknownNode, "trigger node %q not found in workflow", triggerNodeID)
	}
	reachable := reachableFrom(wf, triggerNodeID)

	projectStore, err := e.storage.ForProject(projectSlug)
	if err != nil {
		return nil, errs.Wrap(errs.StorageUnavailable, "failed to open project storage", err)
	}

	deadline := e.config.MaxExecutionTime
	if deadline <= 0 {
		deadline = 30 * time.Second
	}
	actCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()
	actCtx = context.WithValue(actCtx, types.ContextKeyExecutionID, executionID)
	actCtx = context.WithValue(actCtx, types.ContextKeyProjectSlug, projectSlug)

	act := &activationContext{
		engine:      e,
		ctx:         actCtx,
		projectID:   projectSlug,
		projectDB:   projectStore,
		logger:      log,
		tree:        map[string]types.Value{"trigger": payload, "nodes": map[string]types.Value{}},
		outputs:     make(map[string]types.ValueArray),
	}

	result := &types.Result{
		ExecutionID: executionID,
		WorkflowID:  wf.ID,
		NodeResults: make(map[string]types.ValueArray),
	}

	startTime := time.Now()
	e.notifyWorkflowStart(actCtx, executionID, wf.ID, startTime)

	nodesByID := make(map[string]types.Node, len(wf.Nodes))
	for _, n := range wf.Nodes {
		nodesByID[n.ID] = n
	}
	incomingByNode := make(map[string][]types.Edge)
	for _, edge := range wf.Edges {
		incomingByNode[edge.ToNodeID] = append(incomingByNode[edge.ToNodeID], edge)
	}

	var runErr error
	for _, nodeID := range order {
		if !reachable[nodeID] {
			continue
		}
		if err := actCtx.Err(); err != nil {
			runErr = errs.Wrap(errs.DeadlineExceeded, "activation deadline exceeded", err)
			break
		}

		node, ok := nodesByID[nodeID]
		if !ok {
			continue
		}

		if !act.shouldExecute(node, incomingByNode[nodeID], nodesByID) {
			continue
		}

		if err := act.incrementNodeExecutions(e.config.MaxNodeExecutions); err != nil {
			runErr = err
			break
		}

		nodeStart := time.Now()
		e.notifyNodeStart(actCtx, executionID, wf.ID, node, nodeStart)

		data := gatherData(incomingByNode[nodeID], act)
		output, err := e.executeNode(act, node, triggerNodeID, payload, data)
		if err != nil {
			act.logger.WithNodeID(node.ID).WithNodeKind(node.Kind).WithError(err).Error("node execution failed")
			e.notifyNodeFailure(actCtx, executionID, wf.ID, node, nodeStart, err)
			runErr = err
			break
		}

		act.setNodeOutput(node.ID, output)
		e.notifyNodeSuccess(actCtx, executionID, wf.ID, node, nodeStart, output)
	}

	result.NodeResults = act.allOutputs()
	result.FinalOutput = finalOutput(wf, reachable, act)

	if runErr != nil {
		result.Error = runErr.Error()
		e.notifyWorkflowEnd(actCtx, executionID, wf.ID, startTime, nil, len(result.NodeResults), runErr)
		return result, runErr
	}

	e.notifyWorkflowEnd(actCtx, executionID, wf.ID, startTime, result.FinalOutput, len(result.NodeResults), nil)
	return result, nil
}

// executeNode resolves node's input pins and dispatches to its executor.
// The trigger node's payload input pin is seeded from the activation
// payload when no binding already supplied one. data is the node's incoming
// data array — its predecessors' outputs concatenated in edge-declaration
// order — made available to json_path/script bindings as "data" and to
// executors as the "data" input unless a binding already produced one.
func (e *Engine) executeNode(act *activationContext, node types.Node, triggerNodeID string, payload types.Value, data types.ValueArray) (types.ValueArray, error) {
	act.setData(data)
	inputs, err := act.ResolveInputs(node)
	if err != nil {
		return nil, err
	}
	if node.ID == triggerNodeID && node.Kind.IsTrigger() {
		if _, exists := inputs["payload"]; !exists {
			inputs["payload"] = payload
		}
	}
	if _, exists := inputs["data"]; !exists {
		inputs["data"] = data
	}

	nodeCtx := act.ctx
	if e.config.MaxNodeExecutionTime > 0 {
		var cancel context.CancelFunc
		nodeCtx, cancel = context.WithTimeout(act.ctx, e.config.MaxNodeExecutionTime)
		defer cancel()
	}
	scoped := act.withContext(nodeCtx)

	if e.middleware == nil || e.middleware.Len() == 0 {
		return e.executors.Execute(scoped, node, inputs)
	}

	raw, err := e.middleware.Execute(scoped, node, func(c executor.ExecutionContext, n types.Node) (interface{}, error) {
		return e.executors.Execute(c, n, inputs)
	})
	if err != nil {
		return nil, err
	}
	output, ok := raw.(types.ValueArray)
	if !ok {
		return nil, errs.Newf(errs.Internal, "node %s: middleware chain returned %T, expected types.ValueArray", node.ID, raw)
	}
	return output, nil
}

// gatherData builds a node's incoming data array: each incoming edge's
// source node output, concatenated in edge-declaration order. incoming is
// already in declaration order since incomingByNode is built by a single
// pass over wf.Edges.
func gatherData(incoming []types.Edge, act *activationContext) types.ValueArray {
	var data types.ValueArray
	for _, edge := range incoming {
		if out, ok := act.NodeOutput(edge.FromNodeID); ok {
			data = append(data, out...)
		}
	}
	return data
}

// reachableFrom returns the set of node IDs reachable from startID via
// outgoing edges, including startID itself.
func reachableFrom(wf *types.Workflow, startID string) map[string]bool {
	out := make(map[string][]string)
	for _, edge := range wf.Edges {
		out[edge.FromNodeID] = append(out[edge.FromNodeID], edge.ToNodeID)
	}

	visited := map[string]bool{startID: true}
	queue := []string{startID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range out[current] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return visited
}

// finalOutput picks the result of a terminal node — one with no outgoing
// edges among the reachable set — preferring the lexicographically first
// node ID for determinism when several terminal nodes produced output.
func finalOutput(wf *types.Workflow, reachable map[string]bool, act *activationContext) types.ValueArray {
	hasOutgoing := make(map[string]bool)
	for _, edge := range wf.Edges {
		hasOutgoing[edge.FromNodeID] = true
	}

	var terminals []string
	for _, node := range wf.Nodes {
		if reachable[node.ID] && !hasOutgoing[node.ID] {
			terminals = append(terminals, node.ID)
		}
	}
	sort.Strings(terminals)

	for _, nodeID := range terminals {
		if output, ok := act.outputs[nodeID]; ok {
			return output
		}
	}
	return nil
}

// ============================================================================
// activationContext: executor.ExecutionContext implementation
// ============================================================================

// activationContext carries one activation's mutable state and implements
// executor.ExecutionContext. It is not safe for concurrent node execution —
// Activate runs nodes one at a time — but guards outputs/tree with a mutex
// since individual executors may read them from helper goroutines.
type activationContext struct {
	engine    *Engine
	ctx       context.Context
	projectID string
	projectDB *storage.ProjectStore

	logger *logging.Logger

	mu      sync.Mutex
	tree    map[string]types.Value
	outputs map[string]types.ValueArray

	nodeExecCount int
}

// withContext returns a shallow copy of act bound to a different context,
// used to apply a per-node deadline without mutating the shared activation
// state.
func (a *activationContext) withContext(ctx context.Context) *activationContext {
	return &activationContext{
		engine:    a.engine,
		ctx:       ctx,
		projectID: a.projectID,
		projectDB: a.projectDB,
		logger:    a.logger,
		tree:      a.tree,
		outputs:   a.outputs,
	}
}

func (a *activationContext) Context() context.Context { return a.ctx }

func (a *activationContext) ResolveInputs(node types.Node) (map[string]types.Value, error) {
	a.mu.Lock()
	tree := a.tree
	a.mu.Unlock()
	return a.engine.bindings.ResolveAll(a.ctx, node.InputPins, tree, a.projectID)
}

func (a *activationContext) GetSecret(name string) (string, error) {
	return a.engine.secrets.Resolve(a.ctx, a.projectID, name)
}

func (a *activationContext) ProjectDB() executor.ProjectStore { return a.projectDB }

func (a *activationContext) Config() *config.Config { return &a.engine.config }

func (a *activationContext) Logger() *logging.Logger { return a.logger }

func (a *activationContext) SetNodeOutput(nodeID string, output types.ValueArray) {
	a.setNodeOutput(nodeID, output)
}

func (a *activationContext) NodeOutput(nodeID string) (types.ValueArray, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out, ok := a.outputs[nodeID]
	return out, ok
}

// setData installs the current node's incoming data array into the
// activation tree under "data", so json_path/script bindings resolved for
// this node see it. Activate runs nodes strictly one at a time, so there is
// no concurrent writer to race with.
func (a *activationContext) setData(data types.ValueArray) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tree["data"] = data
}

func (a *activationContext) setNodeOutput(nodeID string, output types.ValueArray) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.outputs[nodeID] = output
	nodes, _ := a.tree["nodes"].(map[string]types.Value)
	if nodes == nil {
		nodes = make(map[string]types.Value)
		a.tree["nodes"] = nodes
	}
	nodes[nodeID] = output
}

func (a *activationContext) allOutputs() map[string]types.ValueArray {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]types.ValueArray, len(a.outputs))
	for k, v := range a.outputs {
		out[k] = v
	}
	return out
}

func (a *activationContext) incrementNodeExecutions(limit int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nodeExecCount++
	if limit > 0 && a.nodeExecCount > limit {
		return errs.Newf(errs.Internal, "maximum node executions exceeded: %d (limit: %d)", a.nodeExecCount, limit)
	}
	return nil
}

// shouldExecute reports whether node should run, given the edges targeting
// it and the outputs already recorded for their source nodes. A node with
// no incoming edges (a trigger) always executes. A node with incoming
// edges executes when at least one source has executed and either the
// edge is unconditional (SourceHandle nil) or the source's branch output
// matches the edge's SourceHandle.
func (a *activationContext) shouldExecute(node types.Node, incoming []types.Edge, nodesByID map[string]types.Node) bool {
	if len(incoming) == 0 {
		return true
	}

	hasExecutedSource := false
	hasConditionalEdge := false
	conditionSatisfied := false

	for _, edge := range incoming {
		sourceOutput, executed := a.NodeOutput(edge.FromNodeID)
		if !executed {
			continue
		}
		hasExecutedSource = true

		if edge.SourceHandle == nil {
			return true
		}
		hasConditionalEdge = true

		sourceNode := nodesByID[edge.FromNodeID]
		if branch, ok := branchValue(sourceNode, sourceOutput); ok && branch == *edge.SourceHandle {
			conditionSatisfied = true
		}
	}

	if !hasExecutedSource {
		return false
	}
	return !hasConditionalEdge || conditionSatisfied
}

// branchValue extracts the named output branch of a Condition or Switch
// node from its recorded output, used to decide which outgoing edges fire.
func branchValue(node types.Node, output types.ValueArray) (string, bool) {
	if len(output) == 0 {
		return "", false
	}
	switch node.Kind {
	case types.NodeKindCondition:
		if b, ok := output[0].(bool); ok {
			if b {
				return "true", true
			}
			return "false", true
		}
	case types.NodeKindSwitch:
		if s, ok := output[0].(string); ok {
			return s, true
		}
	}
	return "", false
}

// ============================================================================
// Observer notification helpers
// ============================================================================

func (e *Engine) notifyWorkflowStart(ctx context.Context, executionID, workflowID string, startTime time.Time) {
	if !e.observerMgr.HasObservers() {
		return
	}
	e.observerMgr.Notify(ctx, observer.Event{
		Type:        observer.EventWorkflowStart,
		Status:      observer.StatusStarted,
		Timestamp:   startTime,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		StartTime:   startTime,
	})
}

func (e *Engine) notifyWorkflowEnd(ctx context.Context, executionID, workflowID string, startTime time.Time, result types.ValueArray, nodesExecuted int, err error) {
	if !e.observerMgr.HasObservers() {
		return
	}
	status := observer.StatusSuccess
	if err != nil {
		status = observer.StatusFailure
	}
	e.observerMgr.Notify(ctx, observer.Event{
		Type:        observer.EventWorkflowEnd,
		Status:      status,
		Timestamp:   time.Now(),
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		StartTime:   startTime,
		ElapsedTime: time.Since(startTime),
		Result:      result,
		Error:       err,
		Metadata:    map[string]interface{}{"nodes_executed": nodesExecuted},
	})
}

func (e *Engine) notifyNodeStart(ctx context.Context, executionID, workflowID string, node types.Node, startTime time.Time) {
	if !e.observerMgr.HasObservers() {
		return
	}
	e.observerMgr.Notify(ctx, observer.Event{
		Type:        observer.EventNodeStart,
		Status:      observer.StatusStarted,
		Timestamp:   startTime,
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		NodeID:      node.ID,
		NodeKind:    node.Kind,
		StartTime:   startTime,
	})
}

func (e *Engine) notifyNodeSuccess(ctx context.Context, executionID, workflowID string, node types.Node, startTime time.Time, output types.ValueArray) {
	if !e.observerMgr.HasObservers() {
		return
	}
	e.observerMgr.Notify(ctx, observer.Event{
		Type:        observer.EventNodeSuccess,
		Status:      observer.StatusSuccess,
		Timestamp:   time.Now(),
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		NodeID:      node.ID,
		NodeKind:    node.Kind,
		StartTime:   startTime,
		ElapsedTime: time.Since(startTime),
		Result:      output,
	})
}

func (e *Engine) notifyNodeFailure(ctx context.Context, executionID, workflowID string, node types.Node, startTime time.Time, err error) {
	if !e.observerMgr.HasObservers() {
		return
	}
	e.observerMgr.Notify(ctx, observer.Event{
		Type:        observer.EventNodeFailure,
		Status:      observer.StatusFailure,
		Timestamp:   time.Now(),
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		NodeID:      node.ID,
		NodeKind:    node.Kind,
		StartTime:   startTime,
		ElapsedTime: time.Since(startTime),
		Error:       err,
	})
}
