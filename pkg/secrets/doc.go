// Package secrets stores and resolves project-scoped credentials. Secrets
// are encrypted at rest with AES-256-GCM under a single operator-supplied
// key (MECHAWAY_SECRET_KEY) and decrypted only inside Store.Resolve, at
// the moment a binding needs them — plaintext is never persisted, logged,
// or returned to a node's JSON output.
package secrets
