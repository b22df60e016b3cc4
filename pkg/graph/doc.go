// Package graph provides DAG operations for workflow execution: topological
// sorting, cycle detection, and edge traversal.
//
// # Overview
//
// A Graph wraps a workflow's Nodes and Edges and answers the questions the
// engine needs to drive an activation: what order can nodes run in, which
// edges feed a given node, which nodes have no downstream consumer.
//
// # Topological Sort
//
// TopologicalSort implements Kahn's algorithm: compute in-degree for every
// node, seed the queue with the zero-in-degree nodes sorted by ID (so
// identical graphs yield the same order), then repeatedly dequeue a node and
// decrement the in-degree of each neighbor, enqueueing a neighbor once its
// in-degree reaches zero. If every node is eventually dequeued, the
// result is a valid execution order; if nodes remain, the graph contains a
// cycle and TopologicalSort returns an error.
//
// DetectCycles is a thin wrapper that discards the order and returns only
// the error, for callers that just need a yes/no answer before scheduling.
//
// # Traversal helpers
//
// GetNode looks up a node by ID. GetNodeInputEdges and GetNodeOutputEdges
// return the edges incident on a node in each direction. GetTerminalNodes
// returns the IDs of nodes with no outgoing edge — the DAG's sinks — in no
// particular order.
//
// # Thread Safety
//
// A Graph is built once from a workflow snapshot and only read afterward;
// it is safe for concurrent use by multiple goroutines as long as none of
// them mutate the underlying Node/Edge slices.
package graph
