// Package observability provides the logging, metrics and tracing hooks
// used by eventcore: structured logging, metrics, and distributed tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry, Prometheus or DogStatsD
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// Delivery statuses reported in the "event processed" log line.
const (
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
)

// EventProcessed returns the activity label logged for one delivery of
// eventType, e.g. "EventProcessed(user_registered)".
func EventProcessed(eventType string) string {
	return "EventProcessed(" + eventType + ")"
}

// EnrichLogger adds event context to a logger.
// Returns a new logger with event_type and event_id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "user_registered", evt.ID())
//	enriched.Info("doing work") // includes event_type, event_id
func EnrichLogger(logger *slog.Logger, eventType, eventID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
	)
}

// LogDelivery logs the outcome of handing one event to one subscriber.
// Every subscriber produces exactly one such line per notification.
func LogDelivery(logger *slog.Logger, eventType, eventID, subscriber string, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Error("event processed",
			slog.String("activity", EventProcessed(eventType)),
			slog.String("event_id", eventID),
			slog.String("status", StatusFailed),
			slog.String("subscriber", subscriber),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("event processed",
		slog.String("activity", EventProcessed(eventType)),
		slog.String("event_id", eventID),
		slog.String("status", StatusSuccessful),
		slog.String("subscriber", subscriber),
	)
}

// LogEmit logs an emission handed to an adapter.
func LogEmit(logger *slog.Logger, eventType, eventID, adapter string) {
	if logger == nil {
		return
	}
	logger.Debug("event emitted",
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("adapter", adapter),
	)
}

// LogAsyncFailure logs a failure raised on an async worker, where no caller
// is left to receive the error. logger is expected to come from
// EnrichLogger so the line carries the event fields.
func LogAsyncFailure(logger *slog.Logger, err error) {
	if logger == nil {
		return
	}
	logger.Error("async delivery failed", slog.String("error", err.Error()))
}

// LogAsyncDropped logs an event rejected by a saturated or stopped queue.
func LogAsyncDropped(logger *slog.Logger, eventType, eventID, reason string) {
	if logger == nil {
		return
	}
	logger.Warn("async delivery dropped",
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
		slog.String("reason", reason),
	)
}

// LogRegistered logs a new event type entering a registry.
func LogRegistered(logger *slog.Logger, eventType, adapter, digest string) {
	if logger == nil {
		return
	}
	logger.Debug("event type registered",
		slog.String("event_type", eventType),
		slog.String("adapter", adapter),
		slog.String("signature", digest),
	)
}

// LogReload logs the outcome of applying a catalog.
func LogReload(logger *slog.Logger, source string, added, unchanged, replaced int) {
	if logger == nil {
		return
	}
	logger.Info("catalog applied",
		slog.String("source", source),
		slog.Int("added", added),
		slog.Int("unchanged", unchanged),
		slog.Int("replaced", replaced),
	)
}

// LogReloadError logs a catalog reload failure (non-fatal).
func LogReloadError(logger *slog.Logger, source string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("catalog reload failed",
		slog.String("source", source),
		slog.String("error", err.Error()),
	)
}

// LogSignatureDrift logs a type whose definition changed shape on reload.
func LogSignatureDrift(logger *slog.Logger, eventType string, components []string) {
	if logger == nil {
		return
	}
	logger.Info("event type redefined",
		slog.String("event_type", eventType),
		slog.Any("changed", components),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	elapsed := done()
func TimedOperation() func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		return time.Since(start)
	}
}
