// Package binding resolves a Node's InputPins into concrete values at
// activation time. Each pin declares one of four BindingKinds:
//
//   - literal: the configured value, unchanged
//   - json_path: a dotted path (github.com/tidwall/gjson syntax) evaluated
//     against the activation's accumulated node-output tree
//   - secret: a project secret, resolved through a SecretResolver and never
//     echoed back into logs or node output
//   - script: a single sandboxed expression (pkg/sandbox), evaluated with
//     the same tree available under "json"
//
// Resolution happens once per pin per node execution; a Resolver is stateless
// beyond its Sandbox and SecretResolver collaborators and is safe for
// concurrent use.
package binding
