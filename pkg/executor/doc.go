// Package executor implements the node execution strategies for Mechaway's
// DAG engine. Each NodeKind has a dedicated NodeExecutor registered in a
// Registry (pkg/executor/registry.go), replacing a large switch statement
// with the Strategy pattern.
//
// # Required kinds
//
//   - Webhook: trigger, emits the inbound request body as its single output
//   - Cron: trigger, emits {ts, schedule} (fire time and the node's
//     configured expression) on each tick
//   - HTTPClient: makes an outbound HTTP call through the zero-trust policy
//     in pkg/security, with an optional JSON Schema check against the
//     decoded response body; calls per activation are not counted or limited
//   - Script: evaluates a sandboxed expression (pkg/sandbox) against the
//     node's incoming data array
//   - TableWriter, TableReader, TableQuery: read/write project-scoped table
//     storage (pkg/storage) via the ProjectStore interface
//   - PGQuery: runs a parameterized query against an operator-supplied
//     Postgres connection string
//
// # Extended kinds
//
//   - Condition, Switch: branch by emitting on a named SourceHandle
//   - Delay: sleeps, bounded by the activation deadline
//   - Cache: an in-process, project-scoped TTL cache
//
// # Thread safety
//
// Executors are registered once at startup and invoked concurrently across
// activations; any executor-local state must be synchronized.
package executor
