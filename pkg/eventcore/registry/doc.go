// Package registry provides a generic thread-safe table for values indexed by key.
//
// Registry backs the event-type and adapter tables of eventcore. Unlike a
// plain map guarded by a mutex, it offers insert-if-absent semantics so that
// concurrent registrations of the same key are decided by exactly one winner:
//
//	adapters := registry.New[string, Adapter]()
//	if !adapters.Insert("sync", syncAdapter) {
//	    // name already taken
//	}
//
// Writes that must inspect several keys atomically go through Mutate:
//
//	err := r.Mutate(func(entries map[string]*Manager) error {
//	    if _, taken := entries[base]; taken {
//	        return errTaken
//	    }
//	    entries[key] = m
//	    return nil
//	})
//
// # Thread Safety
//
// All Registry methods are safe for concurrent use. Range iterates over a
// snapshot, so Insert and Delete may be called from the callback.
package registry
