// Package state provides the project-scoped TTL cache backing the Cache
// node. Every project gets its own Manager instance so one project's keys
// can never collide with or be read by another.
package state

import (
	"sync"
	"time"
)

// entry is a single cached value with its expiration time.
type entry struct {
	value      interface{}
	expiration time.Time
}

// Manager is a thread-safe, in-process TTL key-value store. It is
// intentionally simple: no persistence, no eviction policy beyond TTL
// expiry, and no scopes beyond whatever prefix the caller puts in the key.
// A CacheExecutor holds one Manager per project slug.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// New creates an empty state manager.
func New() *Manager {
	return &Manager{entries: make(map[string]entry)}
}

// Get returns the value stored under key, or ok=false if the key is
// missing or its TTL has elapsed. An expired entry is evicted lazily on
// the next Get or Set that touches it.
func (m *Manager) Get(key string) (value interface{}, ok bool) {
	m.mu.RLock()
	e, found := m.entries[key]
	m.mu.RUnlock()
	if !found {
		return nil, false
	}
	if time.Now().After(e.expiration) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with the given TTL. A non-positive ttl makes
// the entry immediately expired, which is a valid (if useless) way to
// clear a key without a separate Delete call.
func (m *Manager) Set(key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	m.entries[key] = entry{value: value, expiration: time.Now().Add(ttl)}
	m.mu.Unlock()
}

// Delete removes key, if present.
func (m *Manager) Delete(key string) {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
}

// CleanExpired scans and evicts every expired entry. The Cache node never
// needs to call this directly (Get evicts lazily), but a long-running
// process with many write-once keys benefits from a periodic sweep to
// release memory that would otherwise sit expired-but-unread.
func (m *Manager) CleanExpired() {
	now := time.Now()
	m.mu.Lock()
	for key, e := range m.entries {
		if now.After(e.expiration) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}
