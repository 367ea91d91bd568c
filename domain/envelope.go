package domain

import "encoding/json"

// BroadcastMarker tags envelopes belonging to this protocol. Anything else
// arriving on the same pipe is somebody else's traffic and is ignored.
const BroadcastMarker = "ccdumper-broadcast-channel"

// Envelope is the wire frame for every inter-process broadcast message.
// Data stays raw until a listener for the topic decodes it, so relaying
// never re-interprets payloads.
type Envelope struct {
	Kind  string          `json:"__type__"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// NewEnvelope wraps an already-marshalled payload for a topic.
func NewEnvelope(topic string, data json.RawMessage) Envelope {
	return Envelope{
		Kind:  BroadcastMarker,
		Topic: topic,
		Data:  data,
	}
}

// Valid reports whether the envelope carries this protocol's marker.
func (e Envelope) Valid() bool {
	return e.Kind == BroadcastMarker
}
