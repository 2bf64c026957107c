// Package retry re-runs failing subscribers whose errors are transient.
//
// Errors are classified into categories. Only transient errors are retried;
// everything else fails at once:
//
//	m.Subscribe(retry.Observer(sendInvoice, retry.DefaultConfig))
//
// A subscriber marks an error as worth retrying by wrapping it with
// Transient. Deadline errors and network timeouts are transient as well.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: timeouts, temporary network issues, a busy downstream.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: validation failures, panics, invalid configuration.
	CategoryPermanent
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Attempts is the number of attempts that have been made.
	Attempts int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Attempts)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Attempts)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// Transient marks err as worth retrying.
func Transient(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Context: context}
}

// Permanent marks err as not worth retrying.
func Permanent(err error, context string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent, Context: context}
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTransient
	}

	return CategoryPermanent
}

// IsTransient reports whether err is categorized as transient.
func IsTransient(err error) bool {
	return err != nil && Categorize(err) == CategoryTransient
}
