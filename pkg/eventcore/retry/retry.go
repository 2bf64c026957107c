package retry

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
)

// Config configures retry behavior.
type Config struct {
	// MaxAttempts is the maximum number of attempts (including initial).
	MaxAttempts int

	// InitialBackoff is the starting backoff duration.
	InitialBackoff time.Duration

	// MaxBackoff is the maximum backoff duration.
	MaxBackoff time.Duration

	// BackoffFactor is the multiplier applied to backoff after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// RetryableFunc optionally overrides the default retryability check.
	RetryableFunc func(error) bool

	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultConfig is the standard retry configuration.
var DefaultConfig = Config{
	MaxAttempts:    3,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry disables retries.
var NoRetry = Config{
	MaxAttempts: 1,
}

// Result contains the outcome of Do.
type Result struct {
	// Err is nil on success, otherwise a *CategorizedError.
	Err error

	// Attempts is the number of attempts made.
	Attempts int

	// Duration is the total time spent, backoff included.
	Duration time.Duration
}

// Do runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done.
func Do(ctx context.Context, cfg Config, fn func(context.Context) error) Result {
	start := time.Now()
	backoff := cfg.InitialBackoff
	maxAttempts := max(cfg.MaxAttempts, 1)

	isRetryable := cfg.RetryableFunc
	if isRetryable == nil {
		isRetryable = IsTransient
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{
				Err:      stopped(err, "context cancelled", attempt),
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}

		err := fn(ctx)
		if err == nil {
			return Result{Attempts: attempt + 1, Duration: time.Since(start)}
		}
		lastErr = err

		if !isRetryable(err) {
			return Result{
				Err:      &CategorizedError{Err: err, Category: Categorize(err), Attempts: attempt + 1},
				Attempts: attempt + 1,
				Duration: time.Since(start),
			}
		}

		if attempt < maxAttempts-1 {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt+1, err)
			}
			select {
			case <-ctx.Done():
				return Result{
					Err:      stopped(ctx.Err(), "context cancelled during backoff", attempt+1),
					Attempts: attempt + 1,
					Duration: time.Since(start),
				}
			case <-time.After(calculateBackoff(backoff, cfg.Jitter)):
			}

			backoff = time.Duration(float64(backoff) * cfg.BackoffFactor)
			if cfg.MaxBackoff > 0 && backoff > cfg.MaxBackoff {
				backoff = cfg.MaxBackoff
			}
		}
	}

	return Result{
		Err: &CategorizedError{
			Err:      lastErr,
			Category: Categorize(lastErr),
			Attempts: maxAttempts,
			Context:  "max retries exceeded",
		},
		Attempts: maxAttempts,
		Duration: time.Since(start),
	}
}

// stopped marks err as final: a cancelled context is not retried even
// though a deadline error alone would be categorized as transient.
func stopped(err error, context string, attempts int) *CategorizedError {
	e := Permanent(err, context)
	e.Attempts = attempts
	return e
}

// calculateBackoff returns the backoff duration with jitter applied.
func calculateBackoff(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return base
	}
	jitterAmount := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + jitterAmount)
}

// retryingObserver re-notifies its observer on transient failures.
type retryingObserver struct {
	next eventcore.Observer
	cfg  Config
}

// Observer wraps o so transient failures are retried with cfg before the
// notifier sees them.
func Observer(o eventcore.Observer, cfg Config) eventcore.Observer {
	return &retryingObserver{next: o, cfg: cfg}
}

// Notify implements eventcore.Observer.
func (r *retryingObserver) Notify(ctx context.Context, evt *eventcore.Event) error {
	return Do(ctx, r.cfg, func(ctx context.Context) error {
		return r.next.Notify(ctx, evt)
	}).Err
}

// String describes the wrapped observer in delivery logs.
func (r *retryingObserver) String() string {
	if s, ok := r.next.(fmt.Stringer); ok {
		return "retry(" + s.String() + ")"
	}
	return fmt.Sprintf("retry(%T)", r.next)
}
