// Package engine provides Mechaway's DAG activation engine: it runs one
// workflow from a given trigger node through every node reachable from it,
// in topological order, dispatching to pkg/executor and resolving input
// pins through pkg/binding.
//
// # Overview
//
// A workflow is a directed acyclic graph of Nodes connected by Edges. An
// activation starts at a single trigger node (a Webhook or Cron node) and
// runs every node downstream of it. Conditional branching is expressed
// through Edge.SourceHandle: a Condition node's "true"/"false" output, or a
// Switch node's matched case name, selects which outgoing edges fire next.
// Nodes whose incoming edges never fire are skipped rather than executed.
//
// # Architecture
//
//  1. Topological sort the workflow graph (pkg/graph), then restrict the
//     order to nodes reachable from the activation's trigger node.
//  2. For each node in order, resolve its input pin bindings (pkg/binding)
//     against the activation's accumulated node outputs, dispatch to the
//     registered NodeExecutor (pkg/executor), and record its output.
//  3. Emit observer.Events (pkg/observer) at workflow and node boundaries.
//  4. Enforce the activation deadline and the node-execution-count budget
//     from pkg/config throughout.
//
// # Basic Usage
//
//	eng := engine.New(executorRegistry, bindingResolver, secretStore, storageManager, cfg, observerMgr, logger)
//	result, err := eng.Activate(ctx, "acme-labs", workflow, "trigger", payload)
package engine
