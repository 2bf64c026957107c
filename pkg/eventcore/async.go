package eventcore

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/eventcore/pkg/eventcore/observability"
)

// FailureHandler receives failures raised on async workers, where the
// original emitter has already returned. err is the notifier's error: a
// *FailedSubscribersError, a hook error, or a *PanicError.
type FailureHandler func(ctx context.Context, evt *Event, err error)

// AsyncAdapter runs the notifier on a bounded worker pool.
// Dispatch returns as soon as the event is queued.
//
// Events of types listed with WithOrderedTypes always go to the same worker,
// so they are notified in emit order. Other events go to a shared queue and
// may be handled in any order.
type AsyncAdapter struct {
	// Configuration
	workers        int
	queueSize      int
	ordered        map[string]struct{}
	failureHandler FailureHandler
	logger         *slog.Logger
	metrics        observability.MetricsRecorder

	// State
	mu      sync.RWMutex // guards queue creation and close
	started bool
	closed  bool
	shared  chan asyncTask
	shards  []chan asyncTask
	wg      sync.WaitGroup

	// Stats
	enqueued    atomic.Uint64
	processed   atomic.Uint64
	succeeded   atomic.Uint64
	failed      atomic.Uint64
	panicked    atomic.Uint64
	dropped     atomic.Uint64
	totalTimeNs atomic.Int64
}

// asyncTask is one queued notification.
type asyncTask struct {
	ctx      context.Context
	notifier *Notifier
	manager  *Manager
	event    *Event
}

// AsyncOption configures an AsyncAdapter.
type AsyncOption func(*AsyncAdapter)

// WithWorkers sets the number of worker goroutines. Default: 8.
func WithWorkers(n int) AsyncOption {
	return func(a *AsyncAdapter) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithQueueSize sets the capacity of the shared queue. Default: 1024.
// Each ordered shard gets an equal share of it.
func WithQueueSize(n int) AsyncOption {
	return func(a *AsyncAdapter) {
		if n > 0 {
			a.queueSize = n
		}
	}
}

// WithOrderedTypes serializes delivery of the given event types.
func WithOrderedTypes(types ...string) AsyncOption {
	return func(a *AsyncAdapter) {
		for _, t := range types {
			a.ordered[t] = struct{}{}
		}
	}
}

// WithFailureHandler sets the handler for failures raised on workers.
// Failures are always logged; the handler is an additional escalation path.
func WithFailureHandler(h FailureHandler) AsyncOption {
	return func(a *AsyncAdapter) {
		a.failureHandler = h
	}
}

// WithAsyncLogger sets the logger for worker failures and drops.
func WithAsyncLogger(logger *slog.Logger) AsyncOption {
	return func(a *AsyncAdapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithAsyncMetrics sets the recorder for dropped events.
func WithAsyncMetrics(m observability.MetricsRecorder) AsyncOption {
	return func(a *AsyncAdapter) {
		if m != nil {
			a.metrics = m
		}
	}
}

// NewAsyncAdapter creates an async adapter. Workers start on Start or on
// the first Dispatch.
func NewAsyncAdapter(opts ...AsyncOption) *AsyncAdapter {
	a := &AsyncAdapter{
		workers:   8,
		queueSize: 1024,
		ordered:   make(map[string]struct{}),
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start starts the worker pool. Calling Start on a running adapter is a no-op.
func (a *AsyncAdapter) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startLocked()
}

func (a *AsyncAdapter) startLocked() error {
	if a.closed {
		return ErrAdapterClosed
	}
	if a.started {
		return nil
	}

	a.shared = make(chan asyncTask, a.queueSize)
	if len(a.ordered) > 0 {
		shardSize := max(a.queueSize/a.workers, 1)
		a.shards = make([]chan asyncTask, a.workers)
		for i := range a.shards {
			a.shards[i] = make(chan asyncTask, shardSize)
		}
	}

	for i := 0; i < a.workers; i++ {
		var own chan asyncTask
		if a.shards != nil {
			own = a.shards[i]
		}
		a.wg.Add(1)
		go a.worker(own)
	}
	a.started = true
	return nil
}

// Dispatch queues the notification and returns immediately.
// Returns ErrQueueFull when the target queue is at capacity and
// ErrAdapterClosed after Close.
func (a *AsyncAdapter) Dispatch(ctx context.Context, n *Notifier, m *Manager, evt *Event) error {
	a.mu.RLock()
	if !a.started && !a.closed {
		a.mu.RUnlock()
		if err := a.Start(); err != nil {
			return err
		}
		a.mu.RLock()
	}
	defer a.mu.RUnlock()

	if a.closed {
		a.drop(ctx, evt, "closed")
		return fmt.Errorf("dispatch %s: %w", evt.Type(), ErrAdapterClosed)
	}

	task := asyncTask{
		ctx:      context.WithoutCancel(ctx),
		notifier: n,
		manager:  m,
		event:    evt,
	}

	q := a.queueFor(evt.Type())
	select {
	case q <- task:
		a.enqueued.Add(1)
		observability.AddSpanEvent(ctx, "queued", attribute.Int("queue.depth", len(q)))
		return nil
	default:
		a.drop(ctx, evt, "queue_full")
		return fmt.Errorf("dispatch %s: %w", evt.Type(), ErrQueueFull)
	}
}

func (a *AsyncAdapter) queueFor(typ string) chan asyncTask {
	if _, ok := a.ordered[typ]; ok && a.shards != nil {
		return a.shards[xxhash.Sum64String(typ)%uint64(len(a.shards))]
	}
	return a.shared
}

func (a *AsyncAdapter) drop(ctx context.Context, evt *Event, reason string) {
	a.dropped.Add(1)
	observability.LogAsyncDropped(a.logger, evt.Type(), evt.ID(), reason)
	a.metrics.RecordDropped(ctx, evt.Type(), reason)
}

// Close stops accepting events and waits for queued ones to be handled or
// for ctx to be done. When ctx ends first, Close returns ctx.Err() while
// workers keep draining the queues in the background; the events still
// queued are delivered after Close has returned.
func (a *AsyncAdapter) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	if a.started {
		close(a.shared)
		for _, s := range a.shards {
			close(s)
		}
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// worker drains its own shard and the shared queue until both are closed.
func (a *AsyncAdapter) worker(own chan asyncTask) {
	defer a.wg.Done()

	shared := a.shared
	for shared != nil || own != nil {
		select {
		case task, ok := <-shared:
			if !ok {
				shared = nil
				continue
			}
			a.execute(task)
		case task, ok := <-own:
			if !ok {
				own = nil
				continue
			}
			a.execute(task)
		}
	}
}

// execute runs one notification with panic recovery.
func (a *AsyncAdapter) execute(task asyncTask) {
	a.processed.Add(1)
	start := time.Now()
	evt := task.event

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				a.panicked.Add(1)
				err = &PanicError{
					Subscriber: "async:" + evt.Type(),
					Value:      r,
					Stack:      string(debug.Stack()),
				}
			}
		}()
		return task.notifier.Notify(task.ctx, task.manager, evt)
	}()
	a.totalTimeNs.Add(time.Since(start).Nanoseconds())

	if err == nil {
		a.succeeded.Add(1)
		return
	}
	a.failed.Add(1)
	logger := observability.EnrichLogger(a.logger, evt.Type(), evt.ID())
	observability.LogAsyncFailure(logger, err)
	if a.failureHandler != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("failure handler panicked", slog.Any("panic", r))
				}
			}()
			a.failureHandler(task.ctx, evt, err)
		}()
	}
}

// QueueDepth returns the number of queued events across all queues.
func (a *AsyncAdapter) QueueDepth() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.started || a.closed {
		return 0
	}
	depth := len(a.shared)
	for _, s := range a.shards {
		depth += len(s)
	}
	return depth
}

// IsRunning reports whether workers are accepting events.
func (a *AsyncAdapter) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started && !a.closed
}

// AsyncStats contains counters for an async adapter.
type AsyncStats struct {
	// Enqueued is the total number of events accepted.
	Enqueued uint64
	// Processed is the number of notifications run.
	Processed uint64
	// Succeeded is the number of notifications that returned nil.
	Succeeded uint64
	// Failed is the number of notifications that returned an error, panics included.
	Failed uint64
	// Panicked is the number of notifications that panicked outside a subscriber.
	Panicked uint64
	// Dropped is the number of events rejected because the queue was full or closed.
	Dropped uint64
	// QueueDepth is the current number of queued events.
	QueueDepth int
	// AvgDuration is the average notification time.
	AvgDuration time.Duration
}

// Stats returns adapter statistics.
func (a *AsyncAdapter) Stats() AsyncStats {
	processed := a.processed.Load()
	var avg int64
	if processed > 0 {
		avg = a.totalTimeNs.Load() / int64(processed)
	}
	return AsyncStats{
		Enqueued:    a.enqueued.Load(),
		Processed:   processed,
		Succeeded:   a.succeeded.Load(),
		Failed:      a.failed.Load(),
		Panicked:    a.panicked.Load(),
		Dropped:     a.dropped.Load(),
		QueueDepth:  a.QueueDepth(),
		AvgDuration: time.Duration(avg),
	}
}
