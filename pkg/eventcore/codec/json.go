package codec

import (
	"encoding/json"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
)

// JSON encodes events as a JSON envelope.
type JSON struct {
	opts options
}

var _ Codec = (*JSON)(nil)

// NewJSON creates a JSON codec.
func NewJSON(opts ...Option) *JSON {
	return &JSON{opts: buildOptions(opts)}
}

// Name returns "json".
func (c *JSON) Name() string { return NameJSON }

// ContentType returns "application/json".
func (c *JSON) ContentType() string { return "application/json" }

// Serialize encodes evt.
func (c *JSON) Serialize(evt *eventcore.Event) ([]byte, error) {
	if evt == nil {
		return nil, serializeError(NameJSON, evt, errNilEvent)
	}
	data, err := json.Marshal(newEnvelope(evt))
	if err != nil {
		return nil, serializeError(NameJSON, evt, err)
	}
	return data, nil
}

// Deserialize decodes data produced by Serialize.
func (c *JSON) Deserialize(data []byte) (*eventcore.Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &DeserializationError{Codec: NameJSON, Err: err}
	}
	return c.opts.build(NameJSON, env)
}
