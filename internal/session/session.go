package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/carelinkhq/telecall/internal/media"
	"github.com/carelinkhq/telecall/internal/protocol"
)

// Signaler is the session's outbound edge to the relay.
type Signaler interface {
	SendJoin(room string, identity protocol.Identity) error
	SendCallOffer(to string, offer webrtc.SessionDescription) error
	SendCallAnswer(to string, answer webrtc.SessionDescription) error
	SendNegoOffer(to string, offer webrtc.SessionDescription) error
	SendNegoAnswer(to string, answer webrtc.SessionDescription) error
	SendCandidate(to string, candidate webrtc.ICECandidateInit) error
	SendBusy(to string) error
	SendMediaToggle(room string, kind protocol.MediaKind, enabled bool) error
	SendChat(msg protocol.ChatMessage) error
	SendLeave(room, userID string) error
	SendEndAll(room string) error
}

// Peer is the slice of rtc.Manager the session drives.
type Peer interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error)
	SetRemoteAnswer(answer webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	PublishTracks(tracks []webrtc.TrackLocal) error
	SetRemoteKnown(known bool)
	Reset() error
	Close() error
}

// Session is the client-side call state machine for one consultation room:
// lobby until a peer is known, ready until the call starts, active while
// media flows, ended after any teardown. It owns the local capture stream
// and guarantees it is stopped on every exit path from active.
type Session struct {
	mu sync.Mutex

	signaler Signaler
	peer     Peer
	capture  media.Capture
	logger   *slog.Logger

	room     string
	identity protocol.Identity

	state        State
	peerConnID   string
	peerIdentity protocol.Identity
	stream       media.Stream

	remoteAudioOn bool
	remoteVideoOn bool

	chat   []protocol.ChatMessage
	events chan Event
}

// New builds a session for room on behalf of identity.
func New(signaler Signaler, peer Peer, capture media.Capture, room string, identity protocol.Identity, logger *slog.Logger) *Session {
	return &Session{
		signaler:      signaler,
		peer:          peer,
		capture:       capture,
		logger:        logger,
		room:          room,
		identity:      identity,
		state:         StateLobby,
		remoteAudioOn: true,
		remoteVideoOn: true,
		events:        make(chan Event, 64),
	}
}

// Events is the notification stream for the UI layer. Notifications are
// best effort; a slow consumer loses them rather than blocking the session.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PeerID returns the known peer's connection ID, or "".
func (s *Session) PeerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerConnID
}

// Chat returns a copy of the session-scoped chat log.
func (s *Session) Chat() []protocol.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]protocol.ChatMessage, len(s.chat))
	copy(out, s.chat)
	return out
}

/* -------- user actions -------- */

// Join issues the join request. The relay answers with room:joined or a
// denial; both arrive through the On handlers.
func (s *Session) Join() error {
	if err := s.signaler.SendJoin(s.room, s.identity); err != nil {
		return newError("join room", s.room, err)
	}
	return nil
}

// StartCall acquires local media and sends the opening offer. Valid only in
// the ready state. A media-acquisition failure aborts the call and emits a
// leave so the peer is not left waiting.
func (s *Session) StartCall() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return newError("start call", s.room, ErrNotReady)
	}
	if s.peerConnID == "" {
		return newError("start call", s.room, ErrNoPeer)
	}

	if err := s.acquireMediaLocked(); err != nil {
		return err
	}

	offer, err := s.peer.CreateOffer()
	if err != nil {
		s.releaseMediaLocked()
		return newError("create offer", s.room, err)
	}
	if err := s.signaler.SendCallOffer(s.peerConnID, offer); err != nil {
		s.releaseMediaLocked()
		return newError("send offer", s.room, err)
	}

	s.setStateLocked(StateActive)
	return nil
}

// ToggleMedia flips one local kind and mirrors the change to the peer.
func (s *Session) ToggleMedia(kind protocol.MediaKind) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return newError("toggle media", s.room, ErrNoMedia)
	}

	mk := media.Kind(kind)
	enabled := !s.stream.Enabled(mk)
	s.stream.SetEnabled(mk, enabled)

	if s.peerConnID != "" {
		if err := s.signaler.SendMediaToggle(s.room, kind, enabled); err != nil {
			return newError("toggle media", s.room, err)
		}
	}
	return nil
}

// MediaEnabled reports the local enabled state of one kind.
func (s *Session) MediaEnabled(kind protocol.MediaKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return false
	}
	return s.stream.Enabled(media.Kind(kind))
}

// SendChatMessage sends an in-call text message. Chat is accepted only while
// a peer is known; the log dies with the session.
func (s *Session) SendChatMessage(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.peerConnID == "" {
		return newError("send chat", s.room, ErrNoPeer)
	}

	msg := protocol.ChatMessage{
		Room:       s.room,
		Message:    text,
		SenderName: s.identity.DisplayName(),
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := s.signaler.SendChat(msg); err != nil {
		return newError("send chat", s.room, err)
	}

	msg.SenderID = "me"
	s.chat = append(s.chat, msg)
	return nil
}

// End terminates the call. A doctor ends the consultation for everyone;
// a patient just leaves.
func (s *Session) End() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.identity.Role == protocol.RoleDoctor {
		err = s.signaler.SendEndAll(s.room)
	} else {
		err = s.signaler.SendLeave(s.room, s.identity.UserID)
	}

	s.teardownLocked()
	s.setStateLocked(StateEnded)

	if err != nil {
		return newError("end call", s.room, err)
	}
	return nil
}

// Rejoin resets the peer machinery and re-issues the join request. Valid
// only after the session has ended.
func (s *Session) Rejoin() error {
	s.mu.Lock()

	if s.state != StateEnded {
		s.mu.Unlock()
		return newError("rejoin", s.room, ErrNotEnded)
	}

	s.peerConnID = ""
	s.peerIdentity = protocol.Identity{}
	s.chat = nil
	s.remoteAudioOn = true
	s.remoteVideoOn = true

	if err := s.peer.Reset(); err != nil {
		s.mu.Unlock()
		return newError("rejoin", s.room, err)
	}

	s.setStateLocked(StateLobby)
	s.mu.Unlock()

	return s.Join()
}

// Close releases everything. The session is unusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
	s.peer.Close()
	s.setStateLocked(StateEnded)
}

/* -------- relay notifications -------- */

// OnRoomJoined handles the join confirmation.
func (s *Session) OnRoomJoined(msg *protocol.RoomJoined) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Peer != nil {
		s.setPeerLocked(*msg.Peer)
	} else {
		s.logger.Info("joined room, waiting for peer", "room", s.room)
	}
}

// OnUserJoined handles the other participant arriving after us.
func (s *Session) OnUserJoined(peer protocol.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setPeerLocked(peer)
}

// OnAccessDenied handles a fatal join refusal. No automatic retry.
func (s *Session) OnAccessDenied(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Warn("join denied", "room", s.room, "reason", message)
	s.teardownLocked()
	s.setStateLocked(StateEnded)
	s.emit(Event{Kind: EventAccessDenied, Text: message})
}

// OnIncomingCall accepts the peer's opening offer, bringing up local media
// and answering. A second caller gets a busy notice.
func (s *Session) OnIncomingCall(from string, offer webrtc.SessionDescription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.peerConnID != "" && from != s.peerConnID {
		s.signaler.SendBusy(from)
		return
	}
	if s.peerConnID == "" {
		s.setPeerLocked(protocol.Peer{ID: from})
	}

	if err := s.acquireMediaLocked(); err != nil {
		s.emit(Event{Kind: EventFailure, Err: err})
		return
	}

	answer, err := s.peer.CreateAnswer(offer)
	if err != nil {
		s.logger.Error("answer incoming call", "error", err)
		s.releaseMediaLocked()
		return
	}
	if err := s.signaler.SendCallAnswer(from, answer); err != nil {
		s.logger.Error("send answer", "error", err)
		s.releaseMediaLocked()
		return
	}

	s.setStateLocked(StateActive)
}

// OnCallAccepted applies the peer's answer to our opening offer.
func (s *Session) OnCallAccepted(answer webrtc.SessionDescription) {
	if err := s.peer.SetRemoteAnswer(answer); err != nil {
		s.logger.Error("apply call answer", "error", err)
	}
}

// OnNegoOffer answers a renegotiation round started by the peer.
func (s *Session) OnNegoOffer(from string, offer webrtc.SessionDescription) {
	s.mu.Lock()
	peerID := s.peerConnID
	s.mu.Unlock()

	if from != peerID {
		return
	}

	answer, err := s.peer.CreateAnswer(offer)
	if err != nil {
		s.logger.Error("answer renegotiation", "error", err)
		return
	}
	if err := s.signaler.SendNegoAnswer(from, answer); err != nil {
		s.logger.Error("send renegotiation answer", "error", err)
	}
}

// OnNegoFinal applies the peer's answer to our renegotiation offer.
func (s *Session) OnNegoFinal(from string, answer webrtc.SessionDescription) {
	s.mu.Lock()
	peerID := s.peerConnID
	s.mu.Unlock()

	if from != peerID {
		return
	}
	if err := s.peer.SetRemoteAnswer(answer); err != nil {
		s.logger.Error("apply renegotiation answer", "error", err)
	}
}

// OnRemoteCandidate feeds a relayed ICE candidate to the peer machinery.
func (s *Session) OnRemoteCandidate(candidate webrtc.ICECandidateInit) {
	if err := s.peer.AddICECandidate(candidate); err != nil {
		s.logger.Warn("add remote candidate", "error", err)
	}
}

// OnMediaUpdate mirrors the peer's mute/camera state.
func (s *Session) OnMediaUpdate(toggle protocol.MediaToggle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if toggle.UserID != s.peerConnID {
		return
	}
	switch toggle.Kind {
	case protocol.MediaAudio:
		s.remoteAudioOn = toggle.Enabled
	case protocol.MediaVideo:
		s.remoteVideoOn = toggle.Enabled
	}
	t := toggle
	s.emit(Event{Kind: EventMediaUpdated, Media: &t})
}

// OnChat appends a received chat message.
func (s *Session) OnChat(msg protocol.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chat = append(s.chat, msg)
	m := msg
	s.emit(Event{Kind: EventChatReceived, Chat: &m})
}

// OnEndedByDoctor tears down after the doctor ended the consultation for
// everyone.
func (s *Session) OnEndedByDoctor() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("consultation ended by doctor", "room", s.room)
	s.teardownLocked()
	s.setStateLocked(StateEnded)
}

// OnUserLeft handles the peer leaving or dropping. Mid-call this ends the
// session; before the call it just returns to waiting.
func (s *Session) OnUserLeft(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != s.peerConnID {
		return
	}

	peer := protocol.Peer{ID: s.peerConnID, Identity: s.peerIdentity}
	s.peerConnID = ""
	s.peerIdentity = protocol.Identity{}
	s.peer.SetRemoteKnown(false)
	s.emit(Event{Kind: EventPeerLeft, Peer: &peer})

	if s.state == StateActive {
		s.teardownLocked()
		s.setStateLocked(StateEnded)
	} else {
		s.setStateLocked(StateLobby)
	}
}

// OnBusy reports that the callee is already in another call.
func (s *Session) OnBusy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(Event{Kind: EventPeerBusy})
}

/* -------- peer machinery callbacks -------- */

// OnLocalCandidate forwards a locally gathered candidate to the known peer.
func (s *Session) OnLocalCandidate(candidate webrtc.ICECandidateInit) {
	s.mu.Lock()
	peerID := s.peerConnID
	s.mu.Unlock()

	if peerID == "" {
		return
	}
	if err := s.signaler.SendCandidate(peerID, candidate); err != nil {
		s.logger.Warn("send candidate", "error", err)
	}
}

// OnNegotiationOffer forwards an automatic renegotiation (or ICE restart)
// offer to the known peer.
func (s *Session) OnNegotiationOffer(offer webrtc.SessionDescription) {
	s.mu.Lock()
	peerID := s.peerConnID
	s.mu.Unlock()

	if peerID == "" {
		return
	}
	if err := s.signaler.SendNegoOffer(peerID, offer); err != nil {
		s.logger.Warn("send renegotiation offer", "error", err)
	}
}

// OnConnectionState surfaces transport state changes to the UI.
func (s *Session) OnConnectionState(state webrtc.PeerConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(Event{Kind: EventConnection, Text: state.String()})
}

// OnConnectionFailed surfaces a connection that could not be recovered.
func (s *Session) OnConnectionFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit(Event{Kind: EventFailure, Err: err})
}

/* -------- internals (s.mu held) -------- */

func (s *Session) setPeerLocked(peer protocol.Peer) {
	s.peerConnID = peer.ID
	s.peerIdentity = peer.Identity
	s.peer.SetRemoteKnown(true)

	p := peer
	s.emit(Event{Kind: EventPeerJoined, Peer: &p})

	if s.state == StateLobby {
		s.setStateLocked(StateReady)
	}
}

// acquireMediaLocked opens local capture and publishes the tracks. On
// failure it notifies the relay so the peer is not stranded waiting, and the
// session ends: the leave already removed us from the room, so staying ready
// would misrepresent membership. Rejoin recovers.
func (s *Session) acquireMediaLocked() error {
	if s.stream != nil {
		return nil
	}

	stream, err := s.capture.Open()
	if err != nil {
		s.abortForMediaLocked()
		return newError("acquire media", s.room, ErrMediaUnavailable)
	}

	if err := s.peer.PublishTracks(stream.Tracks()); err != nil {
		stream.Stop()
		s.abortForMediaLocked()
		return newError("publish tracks", s.room, err)
	}

	s.stream = stream
	return nil
}

func (s *Session) abortForMediaLocked() {
	s.signaler.SendLeave(s.room, s.identity.UserID)
	s.teardownLocked()
	s.setStateLocked(StateEnded)
}

func (s *Session) releaseMediaLocked() {
	if s.stream != nil {
		s.stream.Stop()
		s.stream = nil
	}
}

// teardownLocked is the single exit path from active: hardware release
// first, then a fresh peer connection for a possible rejoin.
func (s *Session) teardownLocked() {
	s.releaseMediaLocked()

	s.peerConnID = ""
	s.peerIdentity = protocol.Identity{}
	if err := s.peer.Reset(); err != nil {
		s.logger.Warn("reset peer connection", "error", err)
	}
}

func (s *Session) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.state = state
	s.emit(Event{Kind: EventStateChanged, State: state})
}

func (s *Session) emit(event Event) {
	select {
	case s.events <- event:
	default:
		s.logger.Debug("event dropped, slow consumer", "kind", event.Kind)
	}
}
