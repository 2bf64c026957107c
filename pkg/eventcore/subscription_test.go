package eventcore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notifyOnly struct{ tr *trace }

func (n notifyOnly) Notify(_ context.Context, evt *Event) error {
	n.tr.add("notify:" + evt.Type())
	return nil
}

func TestBindAcceptedTargets(t *testing.T) {
	evt := NewEvent("t", rawAttrs(nil), rawAttrs(nil))
	errFromFunc := errors.New("from func")

	tests := []struct {
		name     string
		target   func(tr *trace) any
		selector string
		want     []string
		wantErr  error
	}{
		{
			name:     "method func(*Event)",
			target:   func(tr *trace) any { return &mailer{tr: tr, name: "m"} },
			selector: "Call",
			want:     []string{"m.Call:t"},
		},
		{
			name:     "method func(ctx, *Event) error",
			target:   func(tr *trace) any { return &mailer{tr: tr, name: "m"} },
			selector: "SendWelcome",
			want:     []string{"m.SendWelcome:t"},
		},
		{
			name:     "observer with default selector",
			target:   func(tr *trace) any { return notifyOnly{tr: tr} },
			selector: DefaultSelector,
			want:     []string{"notify:t"},
		},
		{
			name:     "observer with Notify",
			target:   func(tr *trace) any { return notifyOnly{tr: tr} },
			selector: "Notify",
			want:     []string{"notify:t"},
		},
		{
			name: "plain func(*Event)",
			target: func(tr *trace) any {
				return func(e *Event) { tr.add("func:" + e.Type()) }
			},
			selector: DefaultSelector,
			want:     []string{"func:t"},
		},
		{
			name: "plain func(*Event) error",
			target: func(tr *trace) any {
				return func(*Event) error { return errFromFunc }
			},
			selector: "",
			wantErr:  errFromFunc,
		},
		{
			name: "plain func(ctx, *Event)",
			target: func(tr *trace) any {
				return func(_ context.Context, e *Event) { tr.add("ctx:" + e.Type()) }
			},
			selector: DefaultSelector,
			want:     []string{"ctx:t"},
		},
		{
			name: "ObserverFunc",
			target: func(tr *trace) any {
				return ObserverFunc(func(context.Context, *Event) error {
					tr.add("observer func")
					return nil
				})
			},
			selector: DefaultSelector,
			want:     []string{"observer func"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &trace{}
			o, err := Bind(tt.target(tr), tt.selector)
			require.NoError(t, err)

			err = o.Notify(context.Background(), evt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tr.get())
		})
	}
}

func TestBindRejectsTargets(t *testing.T) {
	var nilFunc func(*Event)

	tests := []struct {
		name     string
		target   any
		selector string
	}{
		{"nil", nil, DefaultSelector},
		{"nil func", nilFunc, DefaultSelector},
		{"missing method", &mailer{}, "Process"},
		{"unexported method", &mailer{}, "string"},
		{"wrong method signature", &mailer{}, "Broken"},
		{"func with other selector", func(*Event) {}, "Process"},
		{"func with wrong signature", func(string) {}, DefaultSelector},
		{"observer with other selector", notifyOnly{}, "Process"},
		{"plain value", 42, DefaultSelector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Bind(tt.target, tt.selector)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidSelector)

			var selErr *SelectorError
			require.ErrorAs(t, err, &selErr)
			assert.NotEmpty(t, selErr.Reason)
		})
	}
}

func TestSubscriptionDescribe(t *testing.T) {
	m := NewManager(MustDefinition("t"), Defaults{})

	sub, err := m.Observe(&mailer{tr: &trace{}, name: "welcome"}, "SendWelcome")
	require.NoError(t, err)
	assert.Equal(t, "mailer:welcome", sub.Describe(), "Stringer targets describe themselves")

	sub = m.Subscribe(notifyOnly{})
	assert.Equal(t, "eventcore.notifyOnly#Notify", sub.Describe())
	assert.Same(t, m, sub.Manager())
}
