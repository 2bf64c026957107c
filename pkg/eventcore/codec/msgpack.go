package codec

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
)

// Msgpack encodes events as a MessagePack envelope.
type Msgpack struct {
	opts options
}

var _ Codec = (*Msgpack)(nil)

// NewMsgpack creates a MessagePack codec.
func NewMsgpack(opts ...Option) *Msgpack {
	return &Msgpack{opts: buildOptions(opts)}
}

// Name returns "msgpack".
func (c *Msgpack) Name() string { return NameMsgpack }

// ContentType returns "application/msgpack".
func (c *Msgpack) ContentType() string { return "application/msgpack" }

// Serialize encodes evt.
func (c *Msgpack) Serialize(evt *eventcore.Event) ([]byte, error) {
	if evt == nil {
		return nil, serializeError(NameMsgpack, evt, errNilEvent)
	}
	data, err := msgpack.Marshal(newEnvelope(evt))
	if err != nil {
		return nil, serializeError(NameMsgpack, evt, err)
	}
	return data, nil
}

// Deserialize decodes data produced by Serialize.
func (c *Msgpack) Deserialize(data []byte) (*eventcore.Event, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, &DeserializationError{Codec: NameMsgpack, Err: err}
	}
	return c.opts.build(NameMsgpack, env)
}
