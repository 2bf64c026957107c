// Package journal keeps a durable record of failed event deliveries so they
// can be inspected and replayed.
//
// A Store is fed from two places: ErrorHook, installed with
// Manager.OnError, records each subscriber failure seen by the notifier,
// and FailureHandler, installed with eventcore.WithFailureHandler, records
// failures raised on async workers after the emitter has returned.
package journal

import (
	"context"
	"errors"
	"time"
)

// Entry is one recorded failure.
type Entry struct {
	ID         string
	EventID    string
	EventType  string
	Error      string
	Codec      string
	Payload    []byte // encoded event
	RecordedAt time.Time
}

// ListOptions filters List results.
type ListOptions struct {
	// EventType restricts results to one type when set.
	EventType string
	// EventID restricts results to the entries of one event when set.
	EventID string
	// Limit caps the number of results when positive.
	Limit int
}

// Store persists journal entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Record stores e. An empty ID is generated; a zero RecordedAt is set to now.
	Record(ctx context.Context, e Entry) error

	// Get returns the entry with the given ID.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (Entry, error)

	// List returns entries oldest first.
	List(ctx context.Context, opts ListOptions) ([]Entry, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	// Delete removes an entry. Returns nil if it doesn't exist.
	Delete(ctx context.Context, id string) error

	// Close releases any resources.
	Close() error
}

// Sentinel errors for journal operations.
var (
	// ErrNotFound indicates an entry doesn't exist.
	ErrNotFound = errors.New("journal entry not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("journal store closed")
)
