// Package state holds the project-scoped TTL cache used by the Cache
// node. Each project gets its own *Manager so a key written by one
// project is invisible to every other project.
//
// # Basic usage
//
//	m := state.New()
//	m.Set("last_seen", payload, 5*time.Minute)
//	value, ok := m.Get("last_seen")
//
// Entries expire lazily: Get evicts a stale entry the moment it is read,
// and CleanExpired sweeps the whole map for a long-lived process that
// writes many keys it never reads back.
package state
