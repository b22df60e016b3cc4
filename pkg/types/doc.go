// Package types provides shared type definitions for the Mechaway workflow
// engine.
//
// # Overview
//
// This package contains the core data structures used across the engine,
// storage, registry, executor and trigger-surface packages. It serves as the
// foundation for avoiding circular dependencies between them.
//
// # Key Components
//
// Node Kinds: the closed set of node kinds (Webhook, Cron, HTTPClient,
// Script, TableWriter, TableReader, TableQuery, PGQuery) plus the extended,
// additive kinds (Condition, Switch, Delay, Cache).
//
// Workflow Structure: Workflow, Node, Edge — a project-scoped, versioned DAG.
//
// Binding DSL: Binding describes how an input pin's value is produced at
// activation time — a literal, a $json path, a $secret lookup, or a script.
//
// Execution Context: context keys and helpers for propagating execution
// metadata through a call chain.
//
// # Thread Safety
//
// The types defined here are not thread-safe for mutation. Concurrent access
// must be coordinated by the caller.
package types
