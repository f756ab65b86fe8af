package session

import "github.com/carelinkhq/telecall/internal/protocol"

// State is the call-session lifecycle.
type State int

const (
	// StateLobby: joined (or joining), no peer known yet.
	StateLobby State = iota
	// StateReady: peer known, call not started.
	StateReady
	// StateActive: media flowing.
	StateActive
	// StateEnded: call over; Rejoin returns to the lobby.
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateLobby:
		return "lobby"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// EventKind tags session notifications for the UI layer.
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventPeerJoined
	EventPeerLeft
	EventAccessDenied
	EventChatReceived
	EventMediaUpdated
	EventPeerBusy
	EventConnection
	EventFailure
)

// Event is one observable session notification.
type Event struct {
	Kind  EventKind
	State State
	Text  string
	Peer  *protocol.Peer
	Chat  *protocol.ChatMessage
	Media *protocol.MediaToggle
	Err   error
}
