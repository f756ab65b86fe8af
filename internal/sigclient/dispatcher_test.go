package sigclient

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/telecall/internal/protocol"
)

// mockEvents records calls for verification.
type mockEvents struct {
	joined       *protocol.RoomJoined
	peerJoined   *protocol.Peer
	denied       string
	incomingFrom string
	incomingSDP  webrtc.SessionDescription
	accepted     *webrtc.SessionDescription
	negoFrom     string
	finalFrom    string
	candidate    *webrtc.ICECandidateInit
	toggle       *protocol.MediaToggle
	chat         *protocol.ChatMessage
	endedByDoc   bool
	leftID       string
	busy         bool
}

func (m *mockEvents) OnRoomJoined(msg *protocol.RoomJoined) { m.joined = msg }

func (m *mockEvents) OnUserJoined(peer protocol.Peer) { m.peerJoined = &peer }

func (m *mockEvents) OnAccessDenied(message string) { m.denied = message }

func (m *mockEvents) OnIncomingCall(from string, offer webrtc.SessionDescription) {
	m.incomingFrom = from
	m.incomingSDP = offer
}

func (m *mockEvents) OnCallAccepted(answer webrtc.SessionDescription) { m.accepted = &answer }

func (m *mockEvents) OnNegoOffer(from string, offer webrtc.SessionDescription) { m.negoFrom = from }

func (m *mockEvents) OnNegoFinal(from string, answer webrtc.SessionDescription) {
	m.finalFrom = from
}

func (m *mockEvents) OnRemoteCandidate(c webrtc.ICECandidateInit) { m.candidate = &c }

func (m *mockEvents) OnMediaUpdate(t protocol.MediaToggle) { m.toggle = &t }

func (m *mockEvents) OnChat(msg protocol.ChatMessage) { m.chat = &msg }

func (m *mockEvents) OnEndedByDoctor() { m.endedByDoc = true }

func (m *mockEvents) OnUserLeft(id string) { m.leftID = id }

func (m *mockEvents) OnBusy() { m.busy = true }

func sdpBlob(t *testing.T, kind webrtc.SDPType) json.RawMessage {
	t.Helper()

	b, err := json.Marshal(webrtc.SessionDescription{Type: kind, SDP: "v=0"})
	require.NoError(t, err)
	return b
}

func TestDispatcher_RoutesRelayEvents(t *testing.T) {
	events := &mockEvents{}
	d := NewDispatcher(nil, events, slog.Default())

	d.dispatch(protocol.MustEnvelope(protocol.EventRoomJoined, protocol.RoomJoined{
		Room: "room-1",
		Peer: &protocol.Peer{ID: "conn-2"},
	}))
	require.NotNil(t, events.joined)
	assert.Equal(t, "conn-2", events.joined.Peer.ID)

	d.dispatch(protocol.MustEnvelope(protocol.EventUserJoined, protocol.Peer{ID: "conn-3"}))
	require.NotNil(t, events.peerJoined)
	assert.Equal(t, "conn-3", events.peerJoined.ID)

	d.dispatch(protocol.MustEnvelope(protocol.EventIncomingCall, protocol.Signal{
		From:  "conn-2",
		Offer: sdpBlob(t, webrtc.SDPTypeOffer),
	}))
	assert.Equal(t, "conn-2", events.incomingFrom)
	assert.Equal(t, webrtc.SDPTypeOffer, events.incomingSDP.Type)

	d.dispatch(protocol.MustEnvelope(protocol.EventCallAccepted, protocol.Signal{
		From:   "conn-2",
		Answer: sdpBlob(t, webrtc.SDPTypeAnswer),
	}))
	require.NotNil(t, events.accepted)
	assert.Equal(t, webrtc.SDPTypeAnswer, events.accepted.Type)

	d.dispatch(protocol.MustEnvelope(protocol.EventNegoNeeded, protocol.Signal{
		From:  "conn-2",
		Offer: sdpBlob(t, webrtc.SDPTypeOffer),
	}))
	assert.Equal(t, "conn-2", events.negoFrom)

	d.dispatch(protocol.MustEnvelope(protocol.EventNegoFinal, protocol.Signal{
		From:   "conn-2",
		Answer: sdpBlob(t, webrtc.SDPTypeAnswer),
	}))
	assert.Equal(t, "conn-2", events.finalFrom)

	candBlob, err := json.Marshal(webrtc.ICECandidateInit{Candidate: "candidate:1"})
	require.NoError(t, err)
	d.dispatch(protocol.MustEnvelope(protocol.EventICE, protocol.Signal{
		From:      "conn-2",
		Candidate: candBlob,
	}))
	require.NotNil(t, events.candidate)
	assert.Equal(t, "candidate:1", events.candidate.Candidate)

	d.dispatch(protocol.MustEnvelope(protocol.EventEndedByDoctor, protocol.EndAll{Room: "room-1"}))
	assert.True(t, events.endedByDoc)

	d.dispatch(protocol.MustEnvelope(protocol.EventUserLeft, protocol.UserLeft{ID: "conn-2"}))
	assert.Equal(t, "conn-2", events.leftID)

	d.dispatch(&protocol.Envelope{Event: protocol.EventCallBusy})
	assert.True(t, events.busy)
}

func TestDispatcher_BothDenialEventsRouteToAccessDenied(t *testing.T) {
	events := &mockEvents{}
	d := NewDispatcher(nil, events, slog.Default())

	d.dispatch(protocol.MustEnvelope(protocol.EventAccessDenied,
		protocol.Denial{Message: "not yours"}))
	assert.Equal(t, "not yours", events.denied)

	d.dispatch(protocol.MustEnvelope(protocol.EventRoomError,
		protocol.Denial{Message: "cancelled"}))
	assert.Equal(t, "cancelled", events.denied)
}

func TestDispatcher_MalformedPayloadDropped(t *testing.T) {
	events := &mockEvents{}
	d := NewDispatcher(nil, events, slog.Default())

	d.dispatch(&protocol.Envelope{
		Event:   protocol.EventUserJoined,
		Payload: json.RawMessage(`{broken`),
	})
	assert.Nil(t, events.peerJoined)

	// An unknown event is ignored, not fatal.
	d.dispatch(&protocol.Envelope{Event: protocol.Event("something:new")})
}
