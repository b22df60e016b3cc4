// Package types provides shared type definitions for the Mechaway workflow
// engine. All core data structures used across packages are defined here to
// avoid circular dependencies.
package types

import (
	"context"
	"encoding/json"
	"time"
)

// ============================================================================
// Context Keys
// ============================================================================

// contextKey is used for context keys to avoid collisions
type contextKey string

const (
	// ContextKeyExecutionID is the context key for the unique execution ID
	ContextKeyExecutionID contextKey = "execution_id"

	// ContextKeyProjectSlug is the context key for the owning project's slug
	ContextKeyProjectSlug contextKey = "project_slug"
)

// GetExecutionID extracts the execution ID from context.
// Returns empty string if not found in context.
func GetExecutionID(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyExecutionID).(string); ok {
		return id
	}
	return ""
}

// GetProjectSlug extracts the owning project's slug from context.
// Returns empty string if not found in context.
func GetProjectSlug(ctx context.Context) string {
	if slug, ok := ctx.Value(ContextKeyProjectSlug).(string); ok {
		return slug
	}
	return ""
}

// ============================================================================
// Node Kinds
// ============================================================================

// NodeKind identifies the closed set of node kinds a Node may declare.
type NodeKind string

const (
	// Required kinds.
	NodeKindWebhook     NodeKind = "webhook"
	NodeKindCron        NodeKind = "cron"
	NodeKindHTTPClient  NodeKind = "http_client"
	NodeKindScript      NodeKind = "script"
	NodeKindTableWriter NodeKind = "table_writer"
	NodeKindTableReader NodeKind = "table_reader"
	NodeKindTableQuery  NodeKind = "table_query"
	NodeKindPGQuery     NodeKind = "pg_query"

	// Extended kinds, additive to the required set.
	NodeKindCondition NodeKind = "condition"
	NodeKindSwitch    NodeKind = "switch"
	NodeKindDelay     NodeKind = "delay"
	NodeKindCache     NodeKind = "cache"
)

// IsTrigger reports whether kind starts a DAG activation on its own (has no
// upstream edges required to run).
func (k NodeKind) IsTrigger() bool {
	return k == NodeKindWebhook || k == NodeKindCron
}

// ============================================================================
// Binding DSL
// ============================================================================

// BindingKind identifies how an input pin's value is produced.
type BindingKind string

const (
	BindingLiteral  BindingKind = "literal"    // fixed value, no lookup
	BindingJSONPath BindingKind = "json_path"  // $json.<dotted.path>
	BindingSecret   BindingKind = "secret"     // $secret.<name>
	BindingScript   BindingKind = "script"     // single-expression script
)

// Binding is the declared source of one input pin's value at activation
// time. Kind selects which of the remaining fields is meaningful.
type Binding struct {
	Kind       BindingKind `json:"kind"`
	Literal    interface{} `json:"literal,omitempty"`
	Path       string      `json:"path,omitempty"`
	SecretName string      `json:"secret_name,omitempty"`
	Script     string      `json:"script,omitempty"`
	Optional   bool        `json:"optional,omitempty"`
}

// ============================================================================
// Core Data Structures
// ============================================================================

// Node is one vertex of a workflow DAG. Params holds kind-specific
// configuration, decoded by the node's executor; InputPins binds each
// declared input name to a Binding evaluated against upstream output at
// activation time.
type Node struct {
	ID        string             `json:"id"`
	Kind      NodeKind           `json:"kind"`
	Params    json.RawMessage    `json:"params,omitempty"`
	InputPins map[string]Binding `json:"input_pins,omitempty"`
}

// Edge connects two nodes. SourceHandle, when set, names the output branch
// the edge reads from (Condition emits "true"/"false"; Switch emits the
// matched case name). A nil SourceHandle is the node's single default
// output.
type Edge struct {
	FromNodeID   string  `json:"from_node_id"`
	ToNodeID     string  `json:"to_node_id"`
	SourceHandle *string `json:"source_handle,omitempty"`
}

// Workflow is a project-scoped, versioned DAG.
type Workflow struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Nodes     []Node    `json:"nodes"`
	Edges     []Edge    `json:"edges"`
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Value is the JSON-compatible payload type carried between nodes.
type Value = interface{}

// ValueArray is the array-of-values every node produces; a single-output
// node emits a length-1 array.
type ValueArray = []Value

// Secret is a project-scoped encrypted credential. Ciphertext is opaque to
// every package except pkg/secrets; plaintext is resolved only inside a
// binding evaluation and must never be logged.
type Secret struct {
	Name       string `json:"name"`
	Ciphertext []byte `json:"-"`
	ProjectID  string `json:"project_id"`
}

// Result is the outcome of one DAG activation.
type Result struct {
	ExecutionID string                `json:"execution_id"`
	WorkflowID  string                `json:"workflow_id"`
	NodeResults map[string]ValueArray `json:"node_results"`
	FinalOutput ValueArray            `json:"final_output,omitempty"`
	Error       string                `json:"error,omitempty"`
}
