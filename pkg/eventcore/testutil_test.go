package eventcore

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventcore/pkg/eventcore/schema"
)

// logRecord is one captured log line.
type logRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]string
}

// captureHandler records log lines in memory.
type captureHandler struct {
	mu      *sync.Mutex
	records *[]logRecord
	attrs   []slog.Attr
}

func newCaptureHandler() *captureHandler {
	return &captureHandler{mu: &sync.Mutex{}, records: &[]logRecord{}}
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := logRecord{Level: r.Level, Message: r.Message, Attrs: map[string]string{}}
	for _, a := range h.attrs {
		rec.Attrs[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[a.Key] = a.Value.String()
		return true
	})
	h.mu.Lock()
	*h.records = append(*h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{mu: h.mu, records: h.records, attrs: append(append([]slog.Attr{}, h.attrs...), attrs...)}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

// messages returns the captured records with the given message.
func (h *captureHandler) messages(msg string) []logRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []logRecord
	for _, r := range *h.records {
		if r.Message == msg {
			out = append(out, r)
		}
	}
	return out
}

// trace is a concurrency-safe ordered log of steps.
type trace struct {
	mu    sync.Mutex
	steps []string
}

func (tr *trace) add(step string) {
	tr.mu.Lock()
	tr.steps = append(tr.steps, step)
	tr.mu.Unlock()
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.steps...)
}

func (tr *trace) len() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return len(tr.steps)
}

// step returns an observer appending name to tr and returning err.
func (tr *trace) step(name string, err error) Observer {
	return ObserverFunc(func(context.Context, *Event) error {
		tr.add(name)
		return err
	})
}

// hook returns a Hook appending name to tr.
func (tr *trace) hook(name string) Hook {
	return func(context.Context, *Event) error {
		tr.add(name)
		return nil
	}
}

// mailer is a struct target bound by selector.
type mailer struct {
	tr   *trace
	name string
}

func (m *mailer) Call(evt *Event) {
	m.tr.add(m.name + ".Call:" + evt.Type())
}

func (m *mailer) SendWelcome(ctx context.Context, evt *Event) error {
	m.tr.add(m.name + ".SendWelcome:" + evt.Type())
	return nil
}

func (m *mailer) Broken(evt *Event) string {
	return ""
}

func (m *mailer) String() string { return "mailer:" + m.name }

// newTestSystem builds a System logging into a capture handler.
func newTestSystem(t *testing.T, opts ...Option) (*System, *captureHandler) {
	t.Helper()
	h := newCaptureHandler()
	sys := NewSystem(append([]Option{WithLogger(slog.New(h))}, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sys.Close(ctx)
	})
	return sys, h
}

// orderPlaced defines the "order_placed" type used across tests.
func orderPlaced(t *testing.T, sys *System, opts ...DefinitionOption) *Manager {
	t.Helper()
	base := []DefinitionOption{
		WithPayload(
			schema.Attr("order_id", schema.TypeInt),
			schema.Attr("note", schema.TypeString, schema.Default("")),
		),
	}
	m, err := sys.Define("order_placed", append(base, opts...)...)
	require.NoError(t, err)
	return m
}

func mustEvent(t *testing.T, m *Manager, payload map[string]any) *Event {
	t.Helper()
	evt, err := m.NewEvent(payload, nil)
	require.NoError(t, err)
	return evt
}

func rawAttrs(m map[string]any) schema.Attributes {
	return schema.Raw(m)
}
