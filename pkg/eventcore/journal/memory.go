package journal

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory journal for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	closed  bool
}

// NewMemoryStore creates an empty in-memory journal.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.entries = append(m.entries, normalize(e))
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Entry{}, ErrStoreClosed
	}
	for _, e := range m.entries {
		if e.ID == id {
			return cloneEntry(e), nil
		}
	}
	return Entry{}, ErrNotFound
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, opts ListOptions) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	var out []Entry
	for _, e := range m.entries {
		if opts.EventType != "" && e.EventType != opts.EventType {
			continue
		}
		if opts.EventID != "" && e.EventID != opts.EventID {
			continue
		}
		out = append(out, cloneEntry(e))
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

// Count implements Store.
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return len(m.entries), nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.entries = slices.DeleteFunc(m.entries, func(e Entry) bool { return e.ID == id })
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}

func normalize(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.RecordedAt.IsZero() {
		e.RecordedAt = time.Now().UTC()
	}
	return cloneEntry(e)
}

func cloneEntry(e Entry) Entry {
	e.Payload = slices.Clone(e.Payload)
	return e
}
