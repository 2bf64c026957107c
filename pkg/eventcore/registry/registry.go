package registry

import "sync"

// Registry is a thread-safe table of values indexed by key.
// It uses sync.RWMutex for read-heavy workloads: lookups happen on every
// emit, writes only when event types or adapters are registered.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates a new empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Insert stores value under key only if the key is absent.
// It reports whether the value was stored. Concurrent Insert calls for the
// same key succeed for exactly one caller.
func (r *Registry[K, V]) Insert(key K, value V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[key]; exists {
		return false
	}
	r.entries[key] = value
	return true
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Has returns true if the key exists in the registry.
func (r *Registry[K, V]) Has(key K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[key]
	return ok
}

// Delete removes a key from the registry and reports whether it was present.
func (r *Registry[K, V]) Delete(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; !ok {
		return false
	}
	delete(r.entries, key)
	return true
}

// Mutate runs fn with exclusive access to the underlying map.
// Use it when a write depends on several entries at once (for example a
// uniqueness check spanning more than one key). fn must not retain the map
// or call back into the registry.
func (r *Registry[K, V]) Mutate(fn func(entries map[K]V) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.entries)
}

// Keys returns all keys in the registry.
// The order is not guaranteed.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of entries in the registry.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear removes every entry.
func (r *Registry[K, V]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[K]V)
}

// Range iterates over all entries in the registry.
// The function fn is called for each entry. If fn returns false,
// iteration stops.
//
// Range iterates over a snapshot of the registry, so it is safe
// to call Insert or Delete during iteration without affecting
// the current iteration.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	snapshot := make(map[K]V, len(r.entries))
	for k, v := range r.entries {
		snapshot[k] = v
	}
	r.mu.RUnlock()

	for k, v := range snapshot {
		if !fn(k, v) {
			return
		}
	}
}
