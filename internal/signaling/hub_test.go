package signaling

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/telecall/internal/appointment"
	"github.com/carelinkhq/telecall/internal/protocol"
)

// The hub only ever touches a client's ID, Send channel and membership
// fields, so tests drive it with connection-less clients.

func testAppointment() *appointment.Appointment {
	return &appointment.Appointment{
		ID:            "appt-1",
		RoomID:        "room-1",
		DoctorUserID:  "doc-1",
		DoctorName:    "Dr. House",
		PatientUserID: "pat-1",
		PatientName:   "John Doe",
		Status:        appointment.StatusConfirmed,
	}
}

func newTestHub(t *testing.T, authority appointment.Authority) *Hub {
	t.Helper()

	h := NewHub(authority, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func newTestClient(h *Hub, id string) *Client {
	c := &Client{ID: id, Hub: h, Send: make(chan *protocol.Envelope, 16)}
	h.Register <- c
	return c
}

func recv(t *testing.T, c *Client) *protocol.Envelope {
	t.Helper()

	select {
	case env := <-c.Send:
		require.NotNil(t, env)
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("no message for %s within timeout", c.ID)
		return nil
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()

	select {
	case env := <-c.Send:
		t.Fatalf("unexpected %s for %s", env.Event, c.ID)
	case <-time.After(100 * time.Millisecond):
	}
}

func join(t *testing.T, h *Hub, c *Client, room string, identity protocol.Identity) {
	t.Helper()

	env := protocol.MustEnvelope(protocol.EventRoomJoin, protocol.JoinRequest{
		Room:     room,
		Identity: identity,
	})
	h.Inbound <- Inbound{Client: c, Env: env}
}

var (
	doctorIdentity  = protocol.Identity{UserID: "doc-1", Name: "Dr. House", Role: protocol.RoleDoctor}
	patientIdentity = protocol.Identity{UserID: "pat-1", Name: "John Doe", Role: protocol.RolePatient}
)

func TestHub_PatientThenDoctorJoin(t *testing.T) {
	authority := appointment.NewMemoryAuthority()
	authority.Put(testAppointment())
	h := newTestHub(t, authority)

	patient := newTestClient(h, "conn-pat")
	doctor := newTestClient(h, "conn-doc")

	join(t, h, patient, "room-1", patientIdentity)
	env := recv(t, patient)
	require.Equal(t, protocol.EventRoomJoined, env.Event)

	var joined protocol.RoomJoined
	require.NoError(t, env.Decode(&joined))
	assert.Equal(t, "room-1", joined.Room)
	assert.Nil(t, joined.Peer, "first member should see no peer")

	join(t, h, doctor, "room-1", doctorIdentity)

	// The waiting patient is told about the doctor.
	env = recv(t, patient)
	require.Equal(t, protocol.EventUserJoined, env.Event)
	var peer protocol.Peer
	require.NoError(t, env.Decode(&peer))
	assert.Equal(t, "conn-doc", peer.ID)
	assert.Equal(t, "Dr. House", peer.Identity.Name)

	// The doctor's confirmation names the patient.
	env = recv(t, doctor)
	require.Equal(t, protocol.EventRoomJoined, env.Event)
	require.NoError(t, env.Decode(&joined))
	require.NotNil(t, joined.Peer)
	assert.Equal(t, "conn-pat", joined.Peer.ID)
}

func TestHub_JoinDenials(t *testing.T) {
	cancelled := testAppointment()
	cancelled.RoomID = "room-cancelled"
	cancelled.Status = appointment.StatusCancelled

	authority := appointment.NewMemoryAuthority()
	authority.Put(testAppointment())
	authority.Put(cancelled)
	h := newTestHub(t, authority)

	tests := []struct {
		name     string
		room     string
		identity protocol.Identity
		event    protocol.Event
		message  string
	}{
		{
			name:     "no_appointment",
			room:     "room-unknown",
			identity: patientIdentity,
			event:    protocol.EventRoomError,
			message:  denyNotFound,
		},
		{
			name:     "cancelled_appointment",
			room:     "room-cancelled",
			identity: patientIdentity,
			event:    protocol.EventRoomError,
			message:  denyCancelled,
		},
		{
			name:     "not_a_participant",
			room:     "room-1",
			identity: protocol.Identity{UserID: "stranger", Role: protocol.RolePatient},
			event:    protocol.EventAccessDenied,
			message:  denyNotAuthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(h, "conn-"+tt.name)
			join(t, h, c, tt.room, tt.identity)

			env := recv(t, c)
			assert.Equal(t, tt.event, env.Event)

			var denial protocol.Denial
			require.NoError(t, env.Decode(&denial))
			assert.Equal(t, tt.message, denial.Message)
		})
	}
}

func TestHub_RoomCapacity(t *testing.T) {
	authority := appointment.NewMemoryAuthority()
	appt := testAppointment()
	appt.PatientUserID = "pat-1"
	authority.Put(appt)
	h := newTestHub(t, authority)

	patient := newTestClient(h, "conn-pat")
	doctor := newTestClient(h, "conn-doc")

	join(t, h, patient, "room-1", patientIdentity)
	recv(t, patient) // room:joined
	join(t, h, doctor, "room-1", doctorIdentity)
	recv(t, patient) // user:joined
	recv(t, doctor)  // room:joined

	// A third distinct participant identity can never exist on a valid
	// appointment, but a duplicate device of the patient while the first
	// is still live must not make the room three-strong either: the
	// stale connection is superseded.
	second := newTestClient(h, "conn-pat-2")
	join(t, h, second, "room-1", patientIdentity)

	env := recv(t, second)
	require.Equal(t, protocol.EventRoomJoined, env.Event)
	var joined protocol.RoomJoined
	require.NoError(t, env.Decode(&joined))
	require.NotNil(t, joined.Peer)
	assert.Equal(t, "conn-doc", joined.Peer.ID)

	// The doctor sees the reconnect as a fresh arrival.
	env = recv(t, doctor)
	assert.Equal(t, protocol.EventUserJoined, env.Event)

	// The superseded connection gets nothing and is out of the room.
	assertSilent(t, patient)
}

func TestHub_TargetedRelay(t *testing.T) {
	authority := appointment.NewMemoryAuthority()
	authority.Put(testAppointment())
	h := newTestHub(t, authority)

	patient := newTestClient(h, "conn-pat")
	doctor := newTestClient(h, "conn-doc")

	join(t, h, patient, "room-1", patientIdentity)
	recv(t, patient)
	join(t, h, doctor, "room-1", doctorIdentity)
	recv(t, patient)
	recv(t, doctor)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	tests := []struct {
		name    string
		in      protocol.Event
		out     protocol.Event
		payload protocol.Signal
	}{
		{
			name:    "call_offer_renamed",
			in:      protocol.EventUserCall,
			out:     protocol.EventIncomingCall,
			payload: protocol.Signal{To: "conn-pat", Offer: offer},
		},
		{
			name:    "nego_offer_kept",
			in:      protocol.EventNegoNeeded,
			out:     protocol.EventNegoNeeded,
			payload: protocol.Signal{To: "conn-pat", Offer: offer},
		},
		{
			name:    "nego_answer_renamed",
			in:      protocol.EventNegoDone,
			out:     protocol.EventNegoFinal,
			payload: protocol.Signal{To: "conn-pat", Answer: offer},
		},
		{
			name:    "ice_kept",
			in:      protocol.EventICE,
			out:     protocol.EventICE,
			payload: protocol.Signal{To: "conn-pat", Candidate: offer},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.Inbound <- Inbound{Client: doctor, Env: protocol.MustEnvelope(tt.in, tt.payload)}

			env := recv(t, patient)
			assert.Equal(t, tt.out, env.Event)

			var sig protocol.Signal
			require.NoError(t, env.Decode(&sig))
			assert.Equal(t, "conn-doc", sig.From, "relay must stamp the sender")
			assert.Empty(t, sig.To)
		})
	}
}

func TestHub_TargetedRelayDropsInvalid(t *testing.T) {
	authority := appointment.NewMemoryAuthority()
	authority.Put(testAppointment())
	h := newTestHub(t, authority)

	patient := newTestClient(h, "conn-pat")
	doctor := newTestClient(h, "conn-doc")

	join(t, h, patient, "room-1", patientIdentity)
	recv(t, patient)
	join(t, h, doctor, "room-1", doctorIdentity)
	recv(t, patient)
	recv(t, doctor)

	// A call offer without its SDP blob is dropped, not forwarded.
	h.Inbound <- Inbound{Client: doctor, Env: protocol.MustEnvelope(
		protocol.EventUserCall, protocol.Signal{To: "conn-pat"})}

	// A signal to a vanished connection is dropped silently.
	h.Inbound <- Inbound{Client: doctor, Env: protocol.MustEnvelope(
		protocol.EventICE, protocol.Signal{To: "conn-gone", Candidate: json.RawMessage(`{}`)})}

	assertSilent(t, patient)
}

func TestHub_ChatAndMediaForwarding(t *testing.T) {
	authority := appointment.NewMemoryAuthority()
	authority.Put(testAppointment())
	h := newTestHub(t, authority)

	patient := newTestClient(h, "conn-pat")
	doctor := newTestClient(h, "conn-doc")

	join(t, h, patient, "room-1", patientIdentity)
	recv(t, patient)
	join(t, h, doctor, "room-1", doctorIdentity)
	recv(t, patient)
	recv(t, doctor)

	h.Inbound <- Inbound{Client: doctor, Env: protocol.MustEnvelope(
		protocol.EventChatMessage, protocol.ChatMessage{
			Room:       "room-1",
			Message:    "hello",
			SenderName: "Dr. House",
			Timestamp:  1700000000000,
		})}

	env := recv(t, patient)
	require.Equal(t, protocol.EventChatMessage, env.Event)
	var msg protocol.ChatMessage
	require.NoError(t, env.Decode(&msg))
	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, "conn-doc", msg.SenderID, "relay must stamp the sender")

	h.Inbound <- Inbound{Client: patient, Env: protocol.MustEnvelope(
		protocol.EventMediaToggle, protocol.MediaToggle{
			Room:    "room-1",
			Kind:    protocol.MediaAudio,
			Enabled: false,
		})}

	env = recv(t, doctor)
	require.Equal(t, protocol.EventMediaUpdate, env.Event)
	var toggle protocol.MediaToggle
	require.NoError(t, env.Decode(&toggle))
	assert.Equal(t, "conn-pat", toggle.UserID)
	assert.Equal(t, protocol.MediaAudio, toggle.Kind)
	assert.False(t, toggle.Enabled)

	// Chat never echoes back to its sender.
	assertSilent(t, doctor)
}

func TestHub_EndForAll(t *testing.T) {
	authority := appointment.NewMemoryAuthority()
	authority.Put(testAppointment())
	h := newTestHub(t, authority)

	patient := newTestClient(h, "conn-pat")
	doctor := newTestClient(h, "conn-doc")

	join(t, h, patient, "room-1", patientIdentity)
	recv(t, patient)
	join(t, h, doctor, "room-1", doctorIdentity)
	recv(t, patient)
	recv(t, doctor)

	// A patient asking to end for everyone is refused after the
	// appointment re-check.
	h.Inbound <- Inbound{Client: patient, Env: protocol.MustEnvelope(
		protocol.EventEndAll, protocol.EndAll{Room: "room-1"})}

	env := recv(t, patient)
	require.Equal(t, protocol.EventRoomError, env.Event)
	var denial protocol.Denial
	require.NoError(t, env.Decode(&denial))
	assert.Equal(t, denyNotDoctor, denial.Message)
	assertSilent(t, doctor)

	// The doctor's request ends the consultation for the patient.
	h.Inbound <- Inbound{Client: doctor, Env: protocol.MustEnvelope(
		protocol.EventEndAll, protocol.EndAll{Room: "room-1"})}

	env = recv(t, patient)
	assert.Equal(t, protocol.EventEndedByDoctor, env.Event)

	// The room is gone: a room-scoped message from either side goes
	// nowhere now.
	h.Inbound <- Inbound{Client: doctor, Env: protocol.MustEnvelope(
		protocol.EventChatMessage, protocol.ChatMessage{Room: "room-1", Message: "gone"})}
	assertSilent(t, patient)
}

func TestHub_LeaveAndDisconnect(t *testing.T) {
	authority := appointment.NewMemoryAuthority()
	authority.Put(testAppointment())
	h := newTestHub(t, authority)

	patient := newTestClient(h, "conn-pat")
	doctor := newTestClient(h, "conn-doc")

	join(t, h, patient, "room-1", patientIdentity)
	recv(t, patient)
	join(t, h, doctor, "room-1", doctorIdentity)
	recv(t, patient)
	recv(t, doctor)

	// Voluntary leave notifies the remaining member.
	h.Inbound <- Inbound{Client: patient, Env: protocol.MustEnvelope(
		protocol.EventUserLeave, protocol.Leave{Room: "room-1"})}

	env := recv(t, doctor)
	require.Equal(t, protocol.EventUserLeft, env.Event)
	var left protocol.UserLeft
	require.NoError(t, env.Decode(&left))
	assert.Equal(t, "conn-pat", left.ID)

	// The patient rejoins, then its transport drops: same notification.
	join(t, h, patient, "room-1", patientIdentity)
	recv(t, patient)
	recv(t, doctor) // user:joined

	h.Unregister <- patient

	env = recv(t, doctor)
	require.Equal(t, protocol.EventUserLeft, env.Event)
	require.NoError(t, env.Decode(&left))
	assert.Equal(t, "conn-pat", left.ID)
}

func TestHub_SecondJoinLeavesFirstRoom(t *testing.T) {
	second := testAppointment()
	second.ID = "appt-2"
	second.RoomID = "room-2"
	second.DoctorUserID = "doc-2"

	authority := appointment.NewMemoryAuthority()
	authority.Put(testAppointment())
	authority.Put(second)
	h := newTestHub(t, authority)

	patient := newTestClient(h, "conn-pat")
	doctor := newTestClient(h, "conn-doc")

	join(t, h, patient, "room-1", patientIdentity)
	recv(t, patient)
	join(t, h, doctor, "room-1", doctorIdentity)
	recv(t, patient)
	recv(t, doctor)

	// The patient moves to its next consultation without disconnecting.
	join(t, h, patient, "room-2", patientIdentity)

	env := recv(t, doctor)
	require.Equal(t, protocol.EventUserLeft, env.Event)
	var left protocol.UserLeft
	require.NoError(t, env.Decode(&left))
	assert.Equal(t, "conn-pat", left.ID)

	env = recv(t, patient)
	require.Equal(t, protocol.EventRoomJoined, env.Event)
	var joined protocol.RoomJoined
	require.NoError(t, env.Decode(&joined))
	assert.Equal(t, "room-2", joined.Room)

	// No membership lingers in the old room: its traffic must not cross.
	h.Inbound <- Inbound{Client: doctor, Env: protocol.MustEnvelope(
		protocol.EventChatMessage, protocol.ChatMessage{Room: "room-1", Message: "follow-up"})}
	assertSilent(t, patient)

	// And the old room no longer routes anything for the mover either.
	h.Inbound <- Inbound{Client: patient, Env: protocol.MustEnvelope(
		protocol.EventChatMessage, protocol.ChatMessage{Room: "room-1", Message: "stale"})}
	assertSilent(t, doctor)
}

func TestHub_MalformedJoinRejected(t *testing.T) {
	h := newTestHub(t, appointment.NewMemoryAuthority())
	c := newTestClient(h, "conn-1")

	// Identity is missing entirely.
	h.Inbound <- Inbound{Client: c, Env: protocol.MustEnvelope(
		protocol.EventRoomJoin, protocol.JoinRequest{Room: "room-1"})}

	env := recv(t, c)
	assert.Equal(t, protocol.EventRoomError, env.Event)
}
