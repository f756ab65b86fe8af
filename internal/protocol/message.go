package protocol

import (
	"encoding/json"
	"fmt"
)

// Event identifies a signaling message kind. The set is closed: the relay
// dispatches on these values through a lookup table and drops anything else.
type Event string

// Client to relay.
const (
	EventRoomJoin    Event = "room:join"
	EventUserCall    Event = "user:call"
	EventNegoNeeded  Event = "peer:nego:needed"
	EventNegoDone    Event = "peer:nego:done"
	EventICE         Event = "peer:ice"
	EventCallBusy    Event = "call:busy"
	EventMediaToggle Event = "media:toggle"
	EventChatMessage Event = "chat:message"
	EventEndAll      Event = "doctor:end:all"
	EventUserLeave   Event = "user:leave"
)

// Relay to client.
const (
	EventRoomJoined    Event = "room:joined"
	EventUserJoined    Event = "user:joined"
	EventAccessDenied  Event = "room:access-denied"
	EventRoomError     Event = "room:error"
	EventIncomingCall  Event = "incoming:call"
	EventCallAccepted  Event = "call:accepted" // also client to relay
	EventNegoFinal     Event = "peer:nego:final"
	EventMediaUpdate   Event = "participant:media:update"
	EventEndedByDoctor Event = "call:ended:by:doctor"
	EventUserLeft      Event = "user:left"
)

// Envelope is the wire format for every websocket message between a client
// and the relay. Payload stays opaque until the event kind is known.
type Envelope struct {
	Event   Event           `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload and wraps it with the event tag.
func NewEnvelope(event Event, payload any) (*Envelope, error) {
	if payload == nil {
		return &Envelope{Event: event}, nil
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return &Envelope{Event: event, Payload: b}, nil
}

// MustEnvelope is NewEnvelope for payloads that cannot fail to marshal.
func MustEnvelope(event Event, payload any) *Envelope {
	e, err := NewEnvelope(event, payload)
	if err != nil {
		panic(err)
	}
	return e
}

// Decode unmarshals the payload into v.
func (e *Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: empty payload", e.Event)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}
