package signaling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/carelinkhq/telecall/internal/appointment"
	"github.com/carelinkhq/telecall/internal/protocol"
)

// How long a single appointment lookup may take before the join is refused.
const lookupTimeout = 10 * time.Second

// Denial messages sent to a refused joiner. Internal lookup failures are
// deliberately collapsed into a generic message.
const (
	denyNotFound      = "No appointment exists for this room"
	denyCancelled     = "This appointment has been cancelled"
	denyNotAuthorized = "You are not a participant of this consultation"
	denyRoomFull      = "This consultation room is already full"
	denyInternal      = "Unable to verify the appointment, try again later"
	denyNotDoctor     = "Only the doctor can end the consultation for everyone"
)

// Inbound is one decoded websocket frame, tagged with its sender.
type Inbound struct {
	Client *Client
	Env    *protocol.Envelope
}

// joinResult carries a finished appointment lookup back onto the hub loop.
type joinResult struct {
	client *Client
	req    protocol.JoinRequest
	appt   *appointment.Appointment
	err    error
}

// endAllResult is the same for a doctor end-for-all re-validation.
type endAllResult struct {
	client *Client
	room   string
	appt   *appointment.Appointment
	err    error
}

// Hub is the signaling relay. One goroutine (Run) owns every room and
// membership mutation; the channels below are its only inputs. Appointment
// lookups are the single suspension point and run off-loop, posting their
// results back through joins/endAlls.
type Hub struct {
	authority appointment.Authority
	logger    *slog.Logger

	rooms   map[string]*Room
	clients map[string]*Client

	Register   chan *Client
	Unregister chan *Client
	Inbound    chan Inbound

	joins   chan joinResult
	endAlls chan endAllResult

	handlers map[protocol.Event]func(*Client, *protocol.Envelope)
}

// NewHub creates a relay that authorizes joins against authority.
func NewHub(authority appointment.Authority, logger *slog.Logger) *Hub {
	h := &Hub{
		authority:  authority,
		logger:     logger,
		rooms:      make(map[string]*Room),
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan Inbound),
		joins:      make(chan joinResult),
		endAlls:    make(chan endAllResult),
	}

	h.handlers = map[protocol.Event]func(*Client, *protocol.Envelope){
		protocol.EventRoomJoin:     h.handleJoin,
		protocol.EventUserCall:     h.handleTargeted,
		protocol.EventCallAccepted: h.handleTargeted,
		protocol.EventNegoNeeded:   h.handleTargeted,
		protocol.EventNegoDone:     h.handleTargeted,
		protocol.EventICE:          h.handleTargeted,
		protocol.EventCallBusy:     h.handleTargeted,
		protocol.EventMediaToggle:  h.handleMediaToggle,
		protocol.EventChatMessage:  h.handleChat,
		protocol.EventEndAll:       h.handleEndAll,
		protocol.EventUserLeave:    h.handleLeave,
	}

	return h
}

// Run processes hub events until ctx is cancelled. All room state lives on
// this loop; nothing else may mutate it.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.Register:
			h.clients[client.ID] = client
			h.logger.Info("connection registered", "conn", client.ID)

		case client := <-h.Unregister:
			h.dropClient(client)

		case in := <-h.Inbound:
			h.dispatch(in.Client, in.Env)

		case res := <-h.joins:
			h.finishJoin(res)

		case res := <-h.endAlls:
			h.finishEndAll(res)
		}
	}
}

func (h *Hub) dispatch(c *Client, env *protocol.Envelope) {
	handler, ok := h.handlers[env.Event]
	if !ok {
		h.logger.Warn("unknown event", "conn", c.ID, "event", env.Event)
		return
	}
	handler(c, env)
}

/* -------- join -------- */

func (h *Hub) handleJoin(c *Client, env *protocol.Envelope) {
	var req protocol.JoinRequest
	if err := env.Decode(&req); err != nil {
		h.deny(c, protocol.EventRoomError, "Malformed join request")
		return
	}
	if err := protocol.Validate(&req); err != nil {
		h.deny(c, protocol.EventRoomError, "Malformed join request")
		return
	}

	// The lookup is the only blocking step in the relay; run it off-loop
	// and rejoin the loop through h.joins.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()

		appt, err := h.authority.Lookup(ctx, req.Room)
		h.joins <- joinResult{client: c, req: req, appt: appt, err: err}
	}()
}

func (h *Hub) finishJoin(res joinResult) {
	c := res.client

	// The connection may have dropped while the lookup was in flight.
	if h.clients[c.ID] != c {
		return
	}

	switch {
	case errors.Is(res.err, appointment.ErrNotFound):
		h.deny(c, protocol.EventRoomError, denyNotFound)
		return
	case res.err != nil:
		h.logger.Error("appointment lookup failed", "room", res.req.Room, "error", res.err)
		h.deny(c, protocol.EventRoomError, denyInternal)
		return
	case res.appt.Status == appointment.StatusCancelled:
		h.deny(c, protocol.EventRoomError, denyCancelled)
		return
	case !res.appt.Participant(res.req.Identity.UserID):
		h.logger.Warn("join refused", "room", res.req.Room, "user", res.req.Identity.UserID)
		h.deny(c, protocol.EventAccessDenied, denyNotAuthorized)
		return
	}

	// A connection switching consultations leaves its old room first;
	// membership in two rooms at once would cross-deliver room traffic.
	if c.RoomID != "" && c.RoomID != res.req.Room {
		h.leaveRoom(c)
	}

	room, ok := h.rooms[res.req.Room]
	if !ok {
		room = newRoom(res.req.Room)
		h.rooms[room.ID] = room
	}

	if room.Full(res.req.Identity) {
		h.deny(c, protocol.EventAccessDenied, denyRoomFull)
		return
	}

	// A reconnect under the same identity supersedes the stale member.
	if stale := room.MemberWithIdentity(res.req.Identity.UserID); stale != nil && stale != c {
		h.logger.Info("stale member replaced", "room", room.ID, "conn", stale.ID)
		delete(room.Members, stale.ID)
		stale.RoomID = ""
	}

	c.RoomID = room.ID
	c.Identity = res.req.Identity
	room.Members[c.ID] = c

	peer := room.Other(c)
	if peer != nil {
		h.send(peer, protocol.EventUserJoined, protocol.Peer{ID: c.ID, Identity: c.Identity})
	}

	joined := protocol.RoomJoined{Room: room.ID}
	if peer != nil {
		joined.Peer = &protocol.Peer{ID: peer.ID, Identity: peer.Identity}
	}
	h.send(c, protocol.EventRoomJoined, joined)

	h.logger.Info("member joined", "room", room.ID, "conn", c.ID,
		"user", c.Identity.UserID, "role", c.Identity.Role)
}

/* -------- targeted signals -------- */

// handleTargeted forwards call, negotiation, ICE and busy events to the
// connection they name. The relay never looks inside the blobs and does not
// second-guess the target: the client already scopes "to" to its known peer.
func (h *Hub) handleTargeted(c *Client, env *protocol.Envelope) {
	var sig protocol.Signal
	if err := env.Decode(&sig); err != nil {
		h.logger.Warn("malformed signal", "conn", c.ID, "event", env.Event, "error", err)
		return
	}
	if err := sig.ValidateFor(env.Event); err != nil {
		h.logger.Warn("invalid signal", "conn", c.ID, "event", env.Event, "error", err)
		return
	}

	target, ok := h.clients[sig.To]
	if !ok {
		// Best effort only: a vanished target drops the message.
		h.logger.Debug("signal target gone", "event", env.Event, "to", sig.To)
		return
	}

	sig.From = c.ID
	sig.To = ""

	out := env.Event
	switch env.Event {
	case protocol.EventUserCall:
		out = protocol.EventIncomingCall
	case protocol.EventNegoDone:
		out = protocol.EventNegoFinal
	}

	fwd, err := protocol.NewEnvelope(out, sig)
	if err != nil {
		h.logger.Error("encode relay envelope", "event", out, "error", err)
		return
	}
	h.push(target, fwd)
}

/* -------- room-scoped events -------- */

func (h *Hub) handleMediaToggle(c *Client, env *protocol.Envelope) {
	var toggle protocol.MediaToggle
	if err := env.Decode(&toggle); err != nil {
		return
	}
	if err := protocol.Validate(&toggle); err != nil {
		return
	}

	other := h.roomPeer(c, toggle.Room)
	if other == nil {
		return
	}

	toggle.UserID = c.ID
	h.send(other, protocol.EventMediaUpdate, toggle)
}

func (h *Hub) handleChat(c *Client, env *protocol.Envelope) {
	var msg protocol.ChatMessage
	if err := env.Decode(&msg); err != nil {
		return
	}
	if err := protocol.Validate(&msg); err != nil {
		return
	}

	other := h.roomPeer(c, msg.Room)
	if other == nil {
		return
	}

	msg.SenderID = c.ID
	h.send(other, protocol.EventChatMessage, msg)
}

// roomPeer returns the other member of the sender's room, or nil if the
// sender is not a member of roomID or is alone.
func (h *Hub) roomPeer(c *Client, roomID string) *Client {
	if c.RoomID == "" || c.RoomID != roomID {
		return nil
	}
	room, ok := h.rooms[c.RoomID]
	if !ok {
		return nil
	}
	return room.Other(c)
}

/* -------- teardown -------- */

func (h *Hub) handleEndAll(c *Client, env *protocol.Envelope) {
	var req protocol.EndAll
	if err := env.Decode(&req); err != nil {
		return
	}
	if err := protocol.Validate(&req); err != nil {
		return
	}
	if c.RoomID == "" || c.RoomID != req.Room {
		return
	}

	// Re-validate the doctor role against the appointment at action time,
	// not just at join.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
		defer cancel()

		appt, err := h.authority.Lookup(ctx, req.Room)
		h.endAlls <- endAllResult{client: c, room: req.Room, appt: appt, err: err}
	}()
}

func (h *Hub) finishEndAll(res endAllResult) {
	c := res.client
	if h.clients[c.ID] != c || c.RoomID != res.room {
		return
	}

	if res.err != nil {
		h.logger.Error("end-all lookup failed", "room", res.room, "error", res.err)
		h.deny(c, protocol.EventRoomError, denyInternal)
		return
	}
	if res.appt.DoctorUserID != c.Identity.UserID {
		h.logger.Warn("end-all refused", "room", res.room, "user", c.Identity.UserID)
		h.deny(c, protocol.EventRoomError, denyNotDoctor)
		return
	}

	room, ok := h.rooms[res.room]
	if !ok {
		return
	}

	for _, m := range room.Members {
		if m == c {
			continue
		}
		h.send(m, protocol.EventEndedByDoctor, protocol.EndAll{Room: room.ID})
		m.RoomID = ""
	}
	c.RoomID = ""
	delete(h.rooms, room.ID)

	h.logger.Info("consultation ended by doctor", "room", room.ID, "conn", c.ID)
}

func (h *Hub) handleLeave(c *Client, env *protocol.Envelope) {
	var req protocol.Leave
	if err := env.Decode(&req); err != nil {
		return
	}
	if c.RoomID == "" || c.RoomID != req.Room {
		return
	}
	h.leaveRoom(c)
}

// leaveRoom removes c from its room and notifies the remaining member.
func (h *Hub) leaveRoom(c *Client) {
	room, ok := h.rooms[c.RoomID]
	if !ok {
		c.RoomID = ""
		return
	}

	delete(room.Members, c.ID)
	c.RoomID = ""

	if len(room.Members) == 0 {
		delete(h.rooms, room.ID)
		h.logger.Info("room deleted", "room", room.ID)
		return
	}

	for _, m := range room.Members {
		h.send(m, protocol.EventUserLeft, protocol.UserLeft{ID: c.ID})
	}
	h.logger.Info("member left", "room", room.ID, "conn", c.ID)
}

// dropClient handles a transport-level disconnect: equivalent to a voluntary
// leave for whatever room the connection belonged to.
func (h *Hub) dropClient(c *Client) {
	if h.clients[c.ID] != c {
		return
	}
	delete(h.clients, c.ID)

	if c.RoomID != "" {
		h.leaveRoom(c)
	}

	close(c.Send)
	h.logger.Info("connection unregistered", "conn", c.ID)
}

/* -------- outbound helpers -------- */

func (h *Hub) deny(c *Client, event protocol.Event, message string) {
	h.send(c, event, protocol.Denial{Message: message})
}

func (h *Hub) send(c *Client, event protocol.Event, payload any) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		h.logger.Error("encode envelope", "event", event, "error", err)
		return
	}
	h.push(c, env)
}

// push delivers without blocking the hub loop. A member whose send buffer is
// full simply loses the message; delivery is best effort.
func (h *Hub) push(c *Client, env *protocol.Envelope) {
	select {
	case c.Send <- env:
	default:
		h.logger.Warn("send buffer full, message dropped", "conn", c.ID, "event", env.Event)
	}
}
