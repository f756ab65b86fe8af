package sigclient

import (
	"encoding/json"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/carelinkhq/telecall/internal/protocol"
)

// Events is the inbound edge of the call session; *session.Session
// implements it.
type Events interface {
	OnRoomJoined(msg *protocol.RoomJoined)
	OnUserJoined(peer protocol.Peer)
	OnAccessDenied(message string)
	OnIncomingCall(from string, offer webrtc.SessionDescription)
	OnCallAccepted(answer webrtc.SessionDescription)
	OnNegoOffer(from string, offer webrtc.SessionDescription)
	OnNegoFinal(from string, answer webrtc.SessionDescription)
	OnRemoteCandidate(candidate webrtc.ICECandidateInit)
	OnMediaUpdate(toggle protocol.MediaToggle)
	OnChat(msg protocol.ChatMessage)
	OnEndedByDoctor()
	OnUserLeft(id string)
	OnBusy()
}

// Dispatcher decodes relay envelopes and routes them into the session.
type Dispatcher struct {
	client *Client
	events Events
	logger *slog.Logger
}

// NewDispatcher wires the client's incoming stream to events.
func NewDispatcher(client *Client, events Events, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{client: client, events: events, logger: logger}
}

// Run consumes envelopes until the connection closes. Call it in its own
// goroutine.
func (d *Dispatcher) Run() {
	for env := range d.client.Incoming() {
		d.dispatch(env)
	}
}

func (d *Dispatcher) dispatch(env *protocol.Envelope) {
	switch env.Event {

	case protocol.EventRoomJoined:
		var msg protocol.RoomJoined
		if d.decode(env, &msg) {
			d.events.OnRoomJoined(&msg)
		}

	case protocol.EventUserJoined:
		var peer protocol.Peer
		if d.decode(env, &peer) {
			d.events.OnUserJoined(peer)
		}

	case protocol.EventAccessDenied, protocol.EventRoomError:
		var denial protocol.Denial
		if d.decode(env, &denial) {
			d.events.OnAccessDenied(denial.Message)
		}

	case protocol.EventIncomingCall:
		if sig, desc, ok := d.description(env, "offer"); ok {
			d.events.OnIncomingCall(sig.From, desc)
		}

	case protocol.EventCallAccepted:
		if _, desc, ok := d.description(env, "answer"); ok {
			d.events.OnCallAccepted(desc)
		}

	case protocol.EventNegoNeeded:
		if sig, desc, ok := d.description(env, "offer"); ok {
			d.events.OnNegoOffer(sig.From, desc)
		}

	case protocol.EventNegoFinal:
		if sig, desc, ok := d.description(env, "answer"); ok {
			d.events.OnNegoFinal(sig.From, desc)
		}

	case protocol.EventICE:
		var sig protocol.Signal
		if !d.decode(env, &sig) {
			return
		}
		var candidate webrtc.ICECandidateInit
		if err := json.Unmarshal(sig.Candidate, &candidate); err != nil {
			d.logger.Warn("malformed candidate", "error", err)
			return
		}
		d.events.OnRemoteCandidate(candidate)

	case protocol.EventMediaUpdate:
		var toggle protocol.MediaToggle
		if d.decode(env, &toggle) {
			d.events.OnMediaUpdate(toggle)
		}

	case protocol.EventChatMessage:
		var msg protocol.ChatMessage
		if d.decode(env, &msg) {
			d.events.OnChat(msg)
		}

	case protocol.EventEndedByDoctor:
		d.events.OnEndedByDoctor()

	case protocol.EventUserLeft:
		var left protocol.UserLeft
		if d.decode(env, &left) {
			d.events.OnUserLeft(left.ID)
		}

	case protocol.EventCallBusy:
		d.events.OnBusy()

	default:
		d.logger.Debug("unhandled relay event", "event", env.Event)
	}
}

func (d *Dispatcher) decode(env *protocol.Envelope, v any) bool {
	if err := env.Decode(v); err != nil {
		d.logger.Warn("malformed relay payload", "event", env.Event, "error", err)
		return false
	}
	return true
}

// description extracts the session description blob named by field from a
// targeted signal.
func (d *Dispatcher) description(env *protocol.Envelope, field string) (protocol.Signal, webrtc.SessionDescription, bool) {
	var sig protocol.Signal
	var desc webrtc.SessionDescription

	if !d.decode(env, &sig) {
		return sig, desc, false
	}

	blob := sig.Offer
	if field == "answer" {
		blob = sig.Answer
	}
	if err := json.Unmarshal(blob, &desc); err != nil {
		d.logger.Warn("malformed session description", "event", env.Event, "error", err)
		return sig, desc, false
	}
	return sig, desc, true
}
