// Package executor provides the Strategy Pattern implementation for node
// execution. A Registry dispatches to one NodeExecutor per NodeKind instead
// of a large switch statement.
package executor

import (
	"context"

	"github.com/insanalamin/mechaway/pkg/config"
	"github.com/insanalamin/mechaway/pkg/logging"
	"github.com/insanalamin/mechaway/pkg/types"
)

// ExecutionContext provides a node executor access to activation state
// without depending on the engine package directly. Defining the interface
// here, rather than in engine, breaks the import cycle: engine implements
// it, executors only import executor.
type ExecutionContext interface {
	// Context returns the activation's context, carrying the per-node
	// execution deadline and the execution/project IDs.
	Context() context.Context

	// ResolveInputs evaluates every declared input pin binding for node
	// against the outputs already produced by its upstream nodes, and
	// returns the resolved values keyed by pin name.
	ResolveInputs(node types.Node) (map[string]types.Value, error)

	// GetSecret resolves a project secret by name. Callers must not log
	// the returned plaintext.
	GetSecret(name string) (string, error)

	// ProjectDB returns the project-scoped table-storage handle used by
	// TableWriter/TableReader/TableQuery executors.
	ProjectDB() ProjectStore

	// Config returns the process-wide configuration (HTTP policy, script
	// limits, table limits).
	Config() *config.Config

	// Logger returns a logger already bound with execution/node metadata.
	Logger() *logging.Logger

	// SetNodeOutput records a node's resolved output so downstream nodes
	// can read it via ResolveInputs.
	SetNodeOutput(nodeID string, output types.ValueArray)

	// NodeOutput returns a previously recorded node output.
	NodeOutput(nodeID string) (types.ValueArray, bool)
}

// ProjectStore is the subset of the project store (pkg/storage) that node
// executors need, kept narrow to avoid a dependency on the full storage
// package from every executor file.
type ProjectStore interface {
	WriteRow(ctx context.Context, table string, row map[string]types.Value) (insertedID int64, err error)
	ReadRows(ctx context.Context, table string, limit, offset int, orderBy string) ([]map[string]types.Value, error)
	QueryRows(ctx context.Context, table string, where string, args []types.Value, limit int, orderBy string) ([]map[string]types.Value, error)
}

// NodeExecutor defines the interface for node execution strategies. Each
// node kind has its own executor implementation.
type NodeExecutor interface {
	// Execute runs the node given its resolved input pin values and
	// returns its output value array.
	Execute(ctx ExecutionContext, node types.Node, inputs map[string]types.Value) (types.ValueArray, error)

	// Kind returns the NodeKind this executor handles.
	Kind() types.NodeKind

	// Validate checks that the node's Params decode into a valid
	// configuration for this kind.
	Validate(node types.Node) error
}
