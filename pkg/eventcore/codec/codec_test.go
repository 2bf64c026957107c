package codec_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
	"github.com/randalmurphal/eventcore/pkg/eventcore/codec"
	"github.com/randalmurphal/eventcore/pkg/eventcore/schema"
)

func newRegistry(t *testing.T) *eventcore.ManagerRegistry {
	t.Helper()
	r := eventcore.NewManagerRegistry()
	_, err := r.Register(eventcore.MustDefinition("user_registered",
		eventcore.WithPayload(
			schema.Attr("user_id", schema.TypeInt),
			schema.Attr("score", schema.TypeFloat),
			schema.Attr("ttl", schema.TypeDuration),
			schema.Attr("at", schema.TypeTime),
		),
		eventcore.WithMetadata(schema.Attr("source", schema.TypeString)),
	))
	require.NoError(t, err)
	return r
}

func sampleEvent(t *testing.T, r *eventcore.ManagerRegistry) *eventcore.Event {
	t.Helper()
	evt, err := r.NewEvent("user_registered",
		map[string]any{
			"user_id": 42,
			"score":   1.5,
			"ttl":     "90s",
			"at":      "2024-05-01T10:00:00Z",
		},
		map[string]any{"source": "web"},
		eventcore.WithEventID("evt-1"),
	)
	require.NoError(t, err)
	return evt
}

func allCodecs(b codec.Builder) []codec.Codec {
	return []codec.Codec{
		codec.NewJSON(codec.WithBuilder(b)),
		codec.NewMsgpack(codec.WithBuilder(b)),
		codec.NewCloudEvents(codec.WithBuilder(b), codec.WithSource("test")),
	}
}

func TestRoundTripRestoresValidatedEvent(t *testing.T) {
	r := newRegistry(t)
	evt := sampleEvent(t, r)

	for _, c := range allCodecs(r) {
		t.Run(c.Name(), func(t *testing.T) {
			data, err := c.Serialize(evt)
			require.NoError(t, err)

			got, err := c.Deserialize(data)
			require.NoError(t, err)

			assert.Equal(t, evt.ID(), got.ID())
			assert.Equal(t, evt.Type(), got.Type())
			assert.Equal(t, 42, got.Payload().Value("user_id"))
			assert.Equal(t, 1.5, got.Payload().Value("score"))
			assert.Equal(t, 90*time.Second, got.Payload().Value("ttl"))
			assert.True(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC).Equal(got.Payload().Value("at").(time.Time)))
			assert.Equal(t, "web", got.Metadata().Value("source"))
		})
	}
}

func TestDeserializeWithoutBuilderKeepsRawValues(t *testing.T) {
	evt := eventcore.NewEvent("t", schema.Raw(map[string]any{"name": "x"}), schema.Raw(nil), eventcore.WithEventID("id"))
	c := codec.NewJSON()

	data, err := c.Serialize(evt)
	require.NoError(t, err)
	got, err := c.Deserialize(data)
	require.NoError(t, err)

	assert.Equal(t, "id", got.ID())
	assert.Equal(t, "x", got.Payload().Value("name"))
	assert.Equal(t, 0, got.Metadata().Len())
}

func TestDeserializeRejectsIncompleteEnvelopes(t *testing.T) {
	full := map[string]any{
		"id":       "evt-1",
		"type":     "user_registered",
		"payload":  map[string]any{},
		"metadata": map[string]any{},
	}

	for _, missing := range []string{"type", "payload", "metadata"} {
		env := map[string]any{}
		for k, v := range full {
			if k != missing {
				env[k] = v
			}
		}

		t.Run("json without "+missing, func(t *testing.T) {
			data, err := json.Marshal(env)
			require.NoError(t, err)
			_, err = codec.NewJSON().Deserialize(data)
			var derr *codec.DeserializationError
			require.ErrorAs(t, err, &derr)
			assert.Contains(t, err.Error(), missing)
		})

		t.Run("msgpack without "+missing, func(t *testing.T) {
			data, err := msgpack.Marshal(env)
			require.NoError(t, err)
			_, err = codec.NewMsgpack().Deserialize(data)
			var derr *codec.DeserializationError
			require.ErrorAs(t, err, &derr)
		})
	}
}

func TestDeserializeRejectsGarbage(t *testing.T) {
	for _, c := range allCodecs(nil) {
		t.Run(c.Name(), func(t *testing.T) {
			_, err := c.Deserialize([]byte("not an event"))
			var derr *codec.DeserializationError
			require.ErrorAs(t, err, &derr)
			assert.Equal(t, c.Name(), derr.Codec)
		})
	}
}

func TestDeserializeValidatesThroughBuilder(t *testing.T) {
	r := newRegistry(t)
	data, err := json.Marshal(map[string]any{
		"id":       "evt-1",
		"type":     "user_registered",
		"payload":  map[string]any{"user_id": "nope"},
		"metadata": map[string]any{"source": "web"},
	})
	require.NoError(t, err)

	_, err = codec.NewJSON(codec.WithBuilder(r)).Deserialize(data)
	var derr *codec.DeserializationError
	require.ErrorAs(t, err, &derr)
	assert.ErrorIs(t, err, schema.ErrValidation)

	unknown, err := json.Marshal(map[string]any{"type": "other", "payload": map[string]any{}, "metadata": map[string]any{}})
	require.NoError(t, err)
	_, err = codec.NewJSON(codec.WithBuilder(r)).Deserialize(unknown)
	assert.ErrorIs(t, err, eventcore.ErrUnmanaged)
}

func TestSerializeErrors(t *testing.T) {
	for _, c := range allCodecs(nil) {
		t.Run(c.Name(), func(t *testing.T) {
			_, err := c.Serialize(nil)
			var serr *codec.SerializationError
			require.ErrorAs(t, err, &serr)
		})
	}

	evt := eventcore.NewEvent("t", schema.Raw(map[string]any{"ch": make(chan int)}), schema.Raw(nil))
	_, err := codec.NewJSON().Serialize(evt)
	var serr *codec.SerializationError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "t", serr.EventType)
}

func TestCloudEventsAttributes(t *testing.T) {
	r := newRegistry(t)
	data, err := codec.NewCloudEvents(codec.WithSource("billing")).Serialize(sampleEvent(t, r))
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "1.0", raw["specversion"])
	assert.Equal(t, "evt-1", raw["id"])
	assert.Equal(t, "user_registered", raw["type"])
	assert.Equal(t, "billing", raw["source"])
	assert.Contains(t, raw["data"], "payload")
}

func TestRegistry(t *testing.T) {
	assert.Subset(t, codec.Names(), []string{"cloudevents", "json", "msgpack"})

	c, err := codec.New("msgpack")
	require.NoError(t, err)
	assert.Equal(t, "application/msgpack", c.ContentType())

	_, err = codec.New("xml")
	assert.ErrorIs(t, err, codec.ErrUnknownCodec)

	err = codec.Register("json", func(...codec.Option) codec.Codec { return codec.NewJSON() })
	assert.Error(t, err)

	require.NoError(t, codec.Register("json-compact", func(opts ...codec.Option) codec.Codec { return codec.NewJSON(opts...) }))
	c, err = codec.New("json-compact")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())
}
