// Package codec serializes events for transport and storage.
//
// Every codec writes an envelope holding the event ID, type, payload and
// metadata, and refuses to decode data missing any of type, payload or
// metadata. Decoded attributes are validated again when the codec is given
// a Builder, usually the application's *eventcore.ManagerRegistry:
//
//	c, err := codec.New("msgpack", codec.WithBuilder(sys.Managers()))
//	data, err := c.Serialize(evt)
//	evt, err = c.Deserialize(data)
//
// Built-in codecs are "json", "msgpack" and "cloudevents".
package codec
