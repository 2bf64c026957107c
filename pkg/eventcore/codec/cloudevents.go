package codec

import (
	"encoding/json"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/randalmurphal/eventcore/pkg/eventcore"
)

// CloudEvents encodes events as structured-mode CloudEvents JSON.
// The event ID and type map to the CloudEvents id and type attributes; the
// payload and metadata travel together in data.
type CloudEvents struct {
	opts options
}

var _ Codec = (*CloudEvents)(nil)

// cloudEventData is the data member of an encoded event.
type cloudEventData struct {
	Payload  map[string]any `json:"payload"`
	Metadata map[string]any `json:"metadata"`
}

// NewCloudEvents creates a CloudEvents codec.
func NewCloudEvents(opts ...Option) *CloudEvents {
	return &CloudEvents{opts: buildOptions(opts)}
}

// Name returns "cloudevents".
func (c *CloudEvents) Name() string { return NameCloudEvents }

// ContentType returns the structured-mode CloudEvents media type.
func (c *CloudEvents) ContentType() string { return cloudevents.ApplicationCloudEventsJSON }

// Serialize encodes evt.
func (c *CloudEvents) Serialize(evt *eventcore.Event) ([]byte, error) {
	if evt == nil {
		return nil, serializeError(NameCloudEvents, evt, errNilEvent)
	}
	env := newEnvelope(evt)

	ce := cloudevents.NewEvent()
	ce.SetID(env.ID)
	ce.SetType(env.Type)
	ce.SetSource(c.opts.source)
	ce.SetTime(time.Now())
	if err := ce.SetData(cloudevents.ApplicationJSON, cloudEventData{Payload: env.Payload, Metadata: env.Metadata}); err != nil {
		return nil, serializeError(NameCloudEvents, evt, err)
	}

	data, err := json.Marshal(ce)
	if err != nil {
		return nil, serializeError(NameCloudEvents, evt, err)
	}
	return data, nil
}

// Deserialize decodes a structured-mode CloudEvent produced by Serialize.
func (c *CloudEvents) Deserialize(data []byte) (*eventcore.Event, error) {
	var ce cloudevents.Event
	if err := json.Unmarshal(data, &ce); err != nil {
		return nil, &DeserializationError{Codec: NameCloudEvents, Err: err}
	}
	if err := ce.Validate(); err != nil {
		return nil, &DeserializationError{Codec: NameCloudEvents, Err: err}
	}

	var body cloudEventData
	if err := ce.DataAs(&body); err != nil {
		return nil, &DeserializationError{Codec: NameCloudEvents, Err: err}
	}
	return c.opts.build(NameCloudEvents, envelope{
		ID:       ce.ID(),
		Type:     ce.Type(),
		Payload:  body.Payload,
		Metadata: body.Metadata,
	})
}
