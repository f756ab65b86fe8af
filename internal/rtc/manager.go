package rtc

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// PeerConn is the slice of *webrtc.PeerConnection the manager drives. The
// seam exists so the negotiation state machine is testable without a network.
type PeerConn interface {
	CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	AddICECandidate(webrtc.ICECandidateInit) error
	SignalingState() webrtc.SignalingState
	ConnectionState() webrtc.PeerConnectionState
	AddTrack(webrtc.TrackLocal) (*webrtc.RTPSender, error)
	OnICECandidate(func(*webrtc.ICECandidate))
	OnConnectionStateChange(func(webrtc.PeerConnectionState))
	OnSignalingStateChange(func(webrtc.SignalingState))
	OnNegotiationNeeded(func())
	OnTrack(func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	Close() error
}

// ConnFactory builds a fresh underlying connection. Reset uses it to rebuild
// after teardown so a client can rejoin without restarting the process.
type ConnFactory func() (PeerConn, error)

// Callbacks are the manager's outputs. All of them may be invoked from pion's
// internal goroutines; implementations must not call back into the manager's
// blocking operations synchronously.
type Callbacks struct {
	// OnLocalCandidate fires for each locally gathered ICE candidate.
	OnLocalCandidate func(webrtc.ICECandidateInit)

	// OnNegotiationOffer fires with a fresh offer produced by automatic
	// renegotiation or an ICE restart; the session forwards it to the peer.
	OnNegotiationOffer func(webrtc.SessionDescription)

	// OnConnectionState mirrors the transport connection state.
	OnConnectionState func(webrtc.PeerConnectionState)

	// OnRemoteTrack fires when remote media arrives.
	OnRemoteTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver)

	// OnFailure fires once the automatic ICE restart has been spent.
	OnFailure func(error)
}

// Manager drives one side of the offer/answer state machine. It owns the two
// guards that close the classic races: a single outstanding-offer flag
// (glare) and a signaling-state check before applying a remote answer
// (stale answers).
type Manager struct {
	mu sync.Mutex

	pc      PeerConn
	factory ConnFactory
	cb      Callbacks
	logger  *slog.Logger

	negotiating bool
	remoteSet   bool
	remoteKnown bool
	pending     []webrtc.ICECandidateInit
	restarted   bool
	closed      bool
}

// NewManager builds the underlying connection via factory and wires its
// event handlers.
func NewManager(factory ConnFactory, cb Callbacks, logger *slog.Logger) (*Manager, error) {
	m := &Manager{
		factory: factory,
		cb:      cb,
		logger:  logger,
	}

	pc, err := factory()
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	m.pc = pc
	m.attach(pc)

	return m, nil
}

func (m *Manager) attach(pc PeerConn) {
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return // gathering complete
		}
		if m.cb.OnLocalCandidate != nil {
			m.cb.OnLocalCandidate(c.ToJSON())
		}
	})

	pc.OnSignalingStateChange(func(state webrtc.SignalingState) {
		if state == webrtc.SignalingStateStable {
			m.mu.Lock()
			m.negotiating = false
			m.mu.Unlock()
		}
	})

	pc.OnNegotiationNeeded(func() {
		if err := m.Renegotiate(); err != nil {
			m.logger.Warn("renegotiation failed", "error", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		m.handleConnectionState(state)
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		if m.cb.OnRemoteTrack != nil {
			m.cb.OnRemoteTrack(track, receiver)
		}
	})
}

// SetRemoteKnown records whether a room peer is currently known. Automatic
// renegotiation is suppressed while it is false, so toggling camera or mic
// alone in the lobby never produces an offer storm.
func (m *Manager) SetRemoteKnown(known bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remoteKnown = known
}

// CreateOffer produces an offer and installs it as the local description.
// A second offer while one is outstanding is refused.
func (m *Manager) CreateOffer() (webrtc.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createOfferLocked(nil)
}

func (m *Manager) createOfferLocked(opts *webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	var zero webrtc.SessionDescription
	if m.closed {
		return zero, ErrClosed
	}
	if m.negotiating {
		return zero, ErrNegotiationInProgress
	}

	offer, err := m.pc.CreateOffer(opts)
	if err != nil {
		return zero, fmt.Errorf("create offer: %w", err)
	}
	if err := m.pc.SetLocalDescription(offer); err != nil {
		return zero, fmt.Errorf("set local description: %w", err)
	}

	m.negotiating = true
	return offer, nil
}

// CreateAnswer applies the remote offer and produces the local answer. The
// pending candidate queue is drained as soon as the remote description lands.
func (m *Manager) CreateAnswer(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero webrtc.SessionDescription
	if m.closed {
		return zero, ErrClosed
	}

	if err := m.pc.SetRemoteDescription(offer); err != nil {
		return zero, fmt.Errorf("set remote offer: %w", err)
	}
	m.remoteSet = true

	answer, err := m.pc.CreateAnswer(nil)
	if err != nil {
		return zero, fmt.Errorf("create answer: %w", err)
	}
	if err := m.pc.SetLocalDescription(answer); err != nil {
		return zero, fmt.Errorf("set local description: %w", err)
	}

	m.drainLocked()
	return answer, nil
}

// SetRemoteAnswer applies an answer to an outstanding local offer. An answer
// arriving in any other signaling state is a stale duplicate from a lost
// race; it is logged and ignored rather than applied.
func (m *Manager) SetRemoteAnswer(answer webrtc.SessionDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if state := m.pc.SignalingState(); state != webrtc.SignalingStateHaveLocalOffer {
		m.logger.Warn("dropping answer out of state", "state", state.String())
		return nil
	}

	if err := m.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	m.remoteSet = true
	m.negotiating = false

	m.drainLocked()
	return nil
}

// AddICECandidate applies the candidate immediately when the remote
// description is already set, otherwise queues it in arrival order.
func (m *Manager) AddICECandidate(candidate webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if !m.remoteSet {
		m.pending = append(m.pending, candidate)
		return nil
	}
	if err := m.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// DrainPendingCandidates applies the queued candidates in arrival order and
// clears the queue. Calling it again on the emptied queue is a no-op.
func (m *Manager) DrainPendingCandidates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drainLocked()
}

func (m *Manager) drainLocked() {
	for _, candidate := range m.pending {
		if err := m.pc.AddICECandidate(candidate); err != nil {
			m.logger.Warn("apply queued candidate", "error", err)
		}
	}
	m.pending = nil
}

// Renegotiate produces a fresh offer for a local media change. It is
// suppressed entirely unless the signaling state is stable, no offer is
// outstanding and a room peer is known.
func (m *Manager) Renegotiate() error {
	m.mu.Lock()
	if m.closed || m.negotiating || !m.remoteKnown ||
		m.pc.SignalingState() != webrtc.SignalingStateStable {
		m.mu.Unlock()
		m.logger.Debug("renegotiation suppressed")
		return nil
	}

	offer, err := m.createOfferLocked(nil)
	m.mu.Unlock()
	if err != nil {
		return err
	}

	if m.cb.OnNegotiationOffer != nil {
		m.cb.OnNegotiationOffer(offer)
	}
	return nil
}

func (m *Manager) handleConnectionState(state webrtc.PeerConnectionState) {
	if m.cb.OnConnectionState != nil {
		m.cb.OnConnectionState(state)
	}

	switch state {
	case webrtc.PeerConnectionStateConnected:
		m.mu.Lock()
		m.restarted = false
		m.mu.Unlock()

	case webrtc.PeerConnectionStateFailed:
		m.restartICE()

	case webrtc.PeerConnectionStateDisconnected:
		m.logger.Warn("peer connection degraded, waiting for recovery")
	}
}

// restartICE attempts one automatic ICE restart; a second failure is
// surfaced instead of retried.
func (m *Manager) restartICE() {
	m.mu.Lock()
	if m.closed {
		// Teardown in progress; the failure is expected, not reportable.
		m.mu.Unlock()
		return
	}
	if !m.remoteKnown || m.restarted {
		m.mu.Unlock()
		if m.cb.OnFailure != nil {
			m.cb.OnFailure(ErrConnectionFailed)
		}
		return
	}
	m.restarted = true
	m.negotiating = false

	offer, err := m.createOfferLocked(&webrtc.OfferOptions{ICERestart: true})
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("ice restart failed", "error", err)
		if m.cb.OnFailure != nil {
			m.cb.OnFailure(ErrConnectionFailed)
		}
		return
	}

	m.logger.Info("restarting ice")
	if m.cb.OnNegotiationOffer != nil {
		m.cb.OnNegotiationOffer(offer)
	}
}

// PublishTracks attaches local media to the connection. Adding tracks
// triggers pion's negotiation-needed path, which funnels into Renegotiate.
func (m *Manager) PublishTracks(tracks []webrtc.TrackLocal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for _, track := range tracks {
		if _, err := m.pc.AddTrack(track); err != nil {
			return fmt.Errorf("add track: %w", err)
		}
	}
	return nil
}

// ConnectionState reports the underlying transport state.
func (m *Manager) ConnectionState() webrtc.PeerConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return webrtc.PeerConnectionStateClosed
	}
	return m.pc.ConnectionState()
}

// Reset tears the connection down and rebuilds a fresh one, clearing every
// queue and guard, so the client can rejoin without a process restart.
func (m *Manager) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pc != nil {
		m.pc.Close()
	}

	pc, err := m.factory()
	if err != nil {
		m.closed = true
		return fmt.Errorf("rebuild peer connection: %w", err)
	}

	m.pc = pc
	m.negotiating = false
	m.remoteSet = false
	m.remoteKnown = false
	m.pending = nil
	m.restarted = false
	m.closed = false
	m.attach(pc)
	return nil
}

// Close shuts the connection down for good. Use Reset to rejoin.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.pending = nil
	return m.pc.Close()
}
