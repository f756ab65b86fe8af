package signaling

import "github.com/carelinkhq/telecall/internal/protocol"

// MaxMembers is the hard capacity of a consultation room: one doctor, one
// patient. A third distinct identity is denied at join time.
const MaxMembers = 2

// Room pairs the two live connections of one consultation. Created lazily on
// the first authorized join, deleted when the last member leaves.
type Room struct {
	// ID is the appointment's room identifier.
	ID string

	// Members maps connection ID to the member's client.
	Members map[string]*Client
}

func newRoom(id string) *Room {
	return &Room{ID: id, Members: make(map[string]*Client)}
}

// Other returns the member that is not c, or nil when c is alone.
func (r *Room) Other(c *Client) *Client {
	for _, m := range r.Members {
		if m != c {
			return m
		}
	}
	return nil
}

// MemberWithIdentity returns the member registered under the given user ID,
// if any. Used to spot a stale connection of the same participant rejoining.
func (r *Room) MemberWithIdentity(userID string) *Client {
	for _, m := range r.Members {
		if m.Identity.UserID == userID {
			return m
		}
	}
	return nil
}

// Full reports whether a join by identity must be rejected for capacity.
// A participant reconnecting under the same user ID is never counted out.
func (r *Room) Full(identity protocol.Identity) bool {
	if len(r.Members) < MaxMembers {
		return false
	}
	return r.MemberWithIdentity(identity.UserID) == nil
}
