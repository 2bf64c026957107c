package eventcore

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/eventcore/pkg/eventcore/schema"
)

func TestManagerResolvesDefaults(t *testing.T) {
	tests := []struct {
		name         string
		def          *Definition
		defaults     Defaults
		wantAdapter  string
		wantSelector string
	}{
		{"process fallbacks", MustDefinition("t"), Defaults{}, AdapterSync, DefaultSelector},
		{"registry defaults", MustDefinition("t"), Defaults{Adapter: AdapterAsync, Selector: "Handle"}, AdapterAsync, "Handle"},
		{"definition wins", MustDefinition("t", WithAdapter("custom"), WithSelector("Process")), Defaults{Adapter: AdapterAsync}, "custom", "Process"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(tt.def, tt.defaults)
			assert.Equal(t, tt.wantAdapter, m.AdapterName())
			assert.Equal(t, tt.wantSelector, m.DefaultSelector())
			assert.Equal(t, "t", m.Type())
			assert.Same(t, tt.def, m.Definition())
		})
	}
}

func TestManagerObserveUsesDefaultSelector(t *testing.T) {
	tr := &trace{}
	m := NewManager(MustDefinition("t", WithSelector("SendWelcome")), Defaults{})

	target := &mailer{tr: tr, name: "m"}
	sub, err := m.Observe(target, "")
	require.NoError(t, err)
	assert.Equal(t, "SendWelcome", sub.Selector)

	_, err = m.Observe(func(*Event) {}, "")
	require.NoError(t, err, "functions bind with the manager's default selector")

	_, err = m.Observe(target, "Missing")
	assert.ErrorIs(t, err, ErrInvalidSelector)
}

func TestManagerDuplicateObserversAllowed(t *testing.T) {
	tr := &trace{}
	m := NewManager(MustDefinition("t"), Defaults{})
	target := &mailer{tr: tr, name: "m"}

	first, err := m.Observe(target, "Call")
	require.NoError(t, err)
	second, err := m.Observe(target, "Call")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []any{target, target}, m.Observers())

	n := NewNotifier(WithLogger(slog.New(newCaptureHandler())))
	require.NoError(t, n.Notify(context.Background(), m, NewEvent("t", rawAttrs(nil), rawAttrs(nil))))
	assert.Equal(t, []string{"m.Call:t", "m.Call:t"}, tr.get())
}

func TestManagerUnobserve(t *testing.T) {
	m := NewManager(MustDefinition("t"), Defaults{})
	tr := &trace{}

	a := m.Subscribe(tr.step("a", nil))
	b := m.Subscribe(tr.step("b", nil))
	c := m.Subscribe(tr.step("c", nil))

	require.NoError(t, m.Unobserve(b))
	subs := m.Subscriptions()
	require.Len(t, subs, 2)
	assert.Equal(t, a.ID, subs[0].ID)
	assert.Equal(t, c.ID, subs[1].ID)

	assert.ErrorIs(t, m.Unobserve(b), ErrSubscriptionNotFound)
	assert.ErrorIs(t, m.Unobserve(nil), ErrSubscriptionNotFound)

	other := NewManager(MustDefinition("other"), Defaults{})
	assert.ErrorIs(t, other.Unobserve(a), ErrSubscriptionNotFound)
}

func TestManagerSubscriptionsIsACopy(t *testing.T) {
	m := NewManager(MustDefinition("t"), Defaults{})
	m.Subscribe(ObserverFunc(func(context.Context, *Event) error { return nil }))

	subs := m.Subscriptions()
	subs[0] = nil
	assert.NotNil(t, m.Subscriptions()[0])
}

func TestManagerNewEventValidates(t *testing.T) {
	m := NewManager(MustDefinition("user_registered",
		WithPayload(schema.Attr("user_id", schema.TypeInt)),
		WithMetadata(schema.Attr("source", schema.TypeString, schema.Optional())),
	), Defaults{})

	evt, err := m.NewEvent(map[string]any{"user_id": "7"}, map[string]any{"source": "web"})
	require.NoError(t, err)
	assert.Equal(t, 7, evt.Payload().Value("user_id"))
	assert.Equal(t, "web", evt.Metadata().Value("source"))

	_, err = m.NewEvent(map[string]any{}, nil)
	assert.ErrorIs(t, err, schema.ErrValidation)

	_, err = m.NewEvent(map[string]any{"user_id": 1}, map[string]any{"unknown": true})
	var verr *schema.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"unknown"}, verr.Fields)
}
