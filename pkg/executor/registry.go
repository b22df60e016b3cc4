package executor

import (
	"fmt"
	"sync"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/types"
)

// Registry manages node executor registration and lookup. It provides
// thread-safe registration and dispatch of node executors.
type Registry struct {
	executors map[types.NodeKind]NodeExecutor
	mu        sync.RWMutex
}

// NewRegistry creates a new executor registry.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[types.NodeKind]NodeExecutor),
	}
}

// Register adds an executor to the registry. Returns error if an executor
// for this kind already exists.
func (r *Registry) Register(exec NodeExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	kind := exec.Kind()
	if _, exists := r.executors[kind]; exists {
		return fmt.Errorf("executor already registered for kind: %s", kind)
	}

	r.executors[kind] = exec
	return nil
}

// MustRegister registers an executor and panics on error. Used during
// process startup, where registration must succeed.
func (r *Registry) MustRegister(exec NodeExecutor) {
	if err := r.Register(exec); err != nil {
		panic(err)
	}
}

// Execute dispatches execution to the executor registered for node.Kind.
func (r *Registry) Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error) {
	r.mu.RLock()
	exec, exists := r.executors[node.Kind]
	r.mu.RUnlock()

	if !exists {
		return nil, errs.Newf(errs.UnknownNode, "no executor registered for kind: %s", node.Kind)
	}

	return exec.Execute(ctx, node, inputs)
}

// Validate validates a node using its registered executor.
func (r *Registry) Validate(node types.Node) error {
	r.mu.RLock()
	exec, exists := r.executors[node.Kind]
	r.mu.RUnlock()

	if !exists {
		return errs.Newf(errs.UnknownNode, "no executor registered for kind: %s", node.Kind)
	}

	return exec.Validate(node)
}

// GetExecutor returns the executor for a given node kind, or nil.
func (r *Registry) GetExecutor(kind types.NodeKind) NodeExecutor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.executors[kind]
}

// ListRegisteredKinds returns all registered node kinds.
func (r *Registry) ListRegisteredKinds() []types.NodeKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]types.NodeKind, 0, len(r.executors))
	for kind := range r.executors {
		kinds = append(kinds, kind)
	}
	return kinds
}
