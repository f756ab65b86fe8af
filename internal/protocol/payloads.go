package protocol

import "encoding/json"

// Role is the participant's position in the appointment.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// Identity is the caller-declared identity carried on a join request. The
// relay checks it against the appointment record, never against itself.
type Identity struct {
	UserID string `json:"userId" validate:"required"`
	Email  string `json:"email" validate:"omitempty,email"`
	Name   string `json:"name"`
	Role   Role   `json:"role" validate:"required,oneof=doctor patient"`
}

// DisplayName falls back to the mailbox part of the email when no name is set.
func (i Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	for k, c := range i.Email {
		if c == '@' {
			return i.Email[:k]
		}
	}
	return i.Email
}

// JoinRequest asks the relay for room membership.
type JoinRequest struct {
	Room     string   `json:"room" validate:"required"`
	Identity Identity `json:"identity" validate:"required"`
}

// Peer describes one registered room member to the other.
type Peer struct {
	ID       string   `json:"id"`
	Identity Identity `json:"identity"`
}

// RoomJoined confirms a join to the joiner. Peer is nil when the joiner is
// alone in the room.
type RoomJoined struct {
	Room string `json:"room"`
	Peer *Peer  `json:"peer,omitempty"`
}

// Denial carries the reason for room:access-denied and room:error.
type Denial struct {
	Message string `json:"message"`
}

// Signal is the shape shared by every targeted relay event: call offers and
// answers, renegotiation rounds, ICE candidates and busy notices. The blobs
// are opaque to the relay; only presence is checked, per event kind.
type Signal struct {
	To        string          `json:"to,omitempty" validate:"required"`
	From      string          `json:"from,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// MediaKind discriminates audio from video in media-state updates.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MediaToggle reports a local mute/unmute or camera change to the room.
// UserID is stamped by the relay before forwarding.
type MediaToggle struct {
	Room    string    `json:"room" validate:"required"`
	UserID  string    `json:"userId,omitempty"`
	Kind    MediaKind `json:"type" validate:"required,oneof=audio video"`
	Enabled bool      `json:"enabled"`
}

// ChatMessage is an in-call text message. Not persisted anywhere; it exists
// only for the lifetime of the session. SenderID is stamped by the relay.
type ChatMessage struct {
	Room       string `json:"room" validate:"required"`
	Message    string `json:"message" validate:"required"`
	SenderID   string `json:"senderId,omitempty"`
	SenderName string `json:"senderName"`
	Timestamp  int64  `json:"timestamp"`
}

// EndAll is the doctor-only request to terminate the consultation for
// everyone in the room.
type EndAll struct {
	Room string `json:"room" validate:"required"`
}

// Leave announces a voluntary exit from the room.
type Leave struct {
	Room   string `json:"room" validate:"required"`
	UserID string `json:"userId,omitempty"`
}

// UserLeft notifies the remaining member that its peer is gone.
type UserLeft struct {
	ID string `json:"id"`
}
