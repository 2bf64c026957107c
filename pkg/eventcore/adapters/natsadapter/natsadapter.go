// Package natsadapter forwards emitted events to NATS subjects and feeds
// events received from NATS back into a local notifier.
//
// Events of type T are published to "<prefix>.T" encoded with a codec.
// A Listener subscribes to "<prefix>.>" on another process (or the same
// one) and notifies the local subscribers of each decoded event:
//
//	conn, _ := nats.Connect(nats.DefaultURL)
//	sys.RegisterAdapter("nats", natsadapter.New(conn, codec.NewJSON()))
//
//	l, _ := natsadapter.Listen(ctx, conn, codec.NewJSON(codec.WithBuilder(sys.Managers())),
//	    sys.Managers(), sys.Notifier())
//	defer l.Close()
package natsadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/codec"
	"github.com/randalmurphal/eventcore/pkg/eventcore/observability"
	"github.com/randalmurphal/eventcore/pkg/eventcore/retry"
)

// DefaultPrefix is the subject prefix used when none is configured.
const DefaultPrefix = "eventcore"

// Message headers set on every published event.
const (
	HeaderContentType = "Content-Type"
	HeaderEventID     = "Eventcore-Id"
	HeaderEventType   = "Eventcore-Type"
)

// ErrNoConnection indicates a nil NATS connection.
var ErrNoConnection = errors.New("nats connection is required")

type options struct {
	prefix string
	local  bool
	logger *slog.Logger
	retry  retry.Config
}

// Option configures an Adapter or Listener.
type Option func(*options)

// WithPrefix sets the subject prefix. Default: DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(o *options) {
		if prefix = strings.Trim(prefix, "."); prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithLocalDelivery makes the adapter also notify local subscribers
// before publishing.
func WithLocalDelivery() Option {
	return func(o *options) {
		o.local = true
	}
}

// WithRetry retries publishes that fail while the connection is
// reconnecting or the server times out. Default: retry.NoRetry.
func WithRetry(cfg retry.Config) Option {
	return func(o *options) {
		o.retry = cfg
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{prefix: DefaultPrefix, logger: slog.Default(), retry: retry.NoRetry}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Subject returns the subject events of typ are published to.
func Subject(prefix, typ string) string {
	return prefix + "." + typ
}

// Adapter publishes events to NATS.
type Adapter struct {
	conn  *nats.Conn
	codec codec.Codec
	opts  options
}

var _ eventcore.Adapter = (*Adapter)(nil)

// New creates an adapter publishing on conn with c.
func New(conn *nats.Conn, c codec.Codec, opts ...Option) *Adapter {
	return &Adapter{conn: conn, codec: c, opts: buildOptions(opts)}
}

// Dispatch encodes evt and publishes it. With local delivery, m's
// subscribers are notified first and a local failure is returned after
// publishing.
func (a *Adapter) Dispatch(ctx context.Context, n *eventcore.Notifier, m *eventcore.Manager, evt *eventcore.Event) error {
	if a.conn == nil {
		return ErrNoConnection
	}

	var localErr error
	if a.opts.local {
		localErr = n.Notify(ctx, m, evt)
	}

	data, err := a.codec.Serialize(evt)
	if err != nil {
		return errors.Join(localErr, err)
	}

	msg := nats.NewMsg(Subject(a.opts.prefix, evt.Type()))
	msg.Data = data
	msg.Header.Set(HeaderContentType, a.codec.ContentType())
	msg.Header.Set(HeaderEventID, evt.ID())
	msg.Header.Set(HeaderEventType, evt.Type())

	cfg := a.opts.retry
	if cfg.RetryableFunc == nil {
		cfg.RetryableFunc = retryablePublish
	}
	res := retry.Do(ctx, cfg, func(context.Context) error {
		return a.conn.PublishMsg(msg)
	})
	if res.Err != nil {
		return errors.Join(localErr, fmt.Errorf("publish %s: %w", msg.Subject, res.Err))
	}
	return localErr
}

func retryablePublish(err error) bool {
	return errors.Is(err, nats.ErrConnectionReconnecting) ||
		errors.Is(err, nats.ErrTimeout) ||
		retry.IsTransient(err)
}

// Close flushes pending publishes. The connection stays open; its owner
// closes it.
func (a *Adapter) Close(ctx context.Context) error {
	if a.conn == nil || a.conn.IsClosed() {
		return nil
	}
	return a.conn.FlushWithContext(ctx)
}

// Listener notifies local subscribers of events received from NATS.
type Listener struct {
	sub      *nats.Subscription
	codec    codec.Codec
	registry *eventcore.ManagerRegistry
	notifier *eventcore.Notifier
	logger   *slog.Logger
	ctx      context.Context
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// Listen subscribes to every subject under the prefix. Decoded events of
// managed types are handed to notifier; anything else is logged and
// dropped. The listener stops when ctx is done or Close is called.
func Listen(ctx context.Context, conn *nats.Conn, c codec.Codec, reg *eventcore.ManagerRegistry, notifier *eventcore.Notifier, opts ...Option) (*Listener, error) {
	if conn == nil {
		return nil, ErrNoConnection
	}
	o := buildOptions(opts)

	l := &Listener{
		codec:    c,
		registry: reg,
		notifier: notifier,
		logger:   o.logger,
		ctx:      context.WithoutCancel(ctx),
		done:     make(chan struct{}),
	}

	sub, err := conn.Subscribe(o.prefix+".>", l.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s.>: %w", o.prefix, err)
	}
	if err := conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}
	l.sub = sub

	go func() {
		select {
		case <-ctx.Done():
			_ = l.Close()
		case <-l.done:
		}
	}()
	return l, nil
}

func (l *Listener) handle(msg *nats.Msg) {
	evt, err := l.codec.Deserialize(msg.Data)
	if err != nil {
		l.logger.Warn("remote event rejected",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return
	}

	logger := observability.EnrichLogger(l.logger, evt.Type(), evt.ID())
	m, err := l.registry.LookupEvent(evt)
	if err != nil {
		logger.Warn("remote event rejected",
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := l.notifier.Notify(l.ctx, m, evt); err != nil {
		logger.Error("remote event delivery failed", slog.String("error", err.Error()))
	}
}

// Close unsubscribes. It is safe to call more than once.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.closeErr = l.sub.Unsubscribe()
		if errors.Is(l.closeErr, nats.ErrConnectionClosed) || errors.Is(l.closeErr, nats.ErrBadSubscription) {
			l.closeErr = nil
		}
	})
	return l.closeErr
}
