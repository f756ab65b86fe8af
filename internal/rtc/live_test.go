package rtc

import (
	"log/slog"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

// TestManagers_LiveExchange runs a real pion offer/answer and trickle-ICE
// round over loopback host candidates.
func TestManagers_LiveExchange(t *testing.T) {
	if testing.Short() {
		t.Skip("live ICE exchange")
	}

	factory := NewPionFactory(ICEConfig{})

	aCandidates := make(chan webrtc.ICECandidateInit, 32)
	bCandidates := make(chan webrtc.ICECandidateInit, 32)
	aConnected := make(chan struct{}, 8)
	bConnected := make(chan struct{}, 8)

	a, err := NewManager(factory, Callbacks{
		OnLocalCandidate: func(c webrtc.ICECandidateInit) { aCandidates <- c },
		OnConnectionState: func(s webrtc.PeerConnectionState) {
			if s == webrtc.PeerConnectionStateConnected {
				aConnected <- struct{}{}
			}
		},
	}, slog.Default())
	require.NoError(t, err)
	defer a.Close()

	b, err := NewManager(factory, Callbacks{
		OnLocalCandidate: func(c webrtc.ICECandidateInit) { bCandidates <- c },
		OnConnectionState: func(s webrtc.PeerConnectionState) {
			if s == webrtc.PeerConnectionStateConnected {
				bConnected <- struct{}{}
			}
		},
	}, slog.Default())
	require.NoError(t, err)
	defer b.Close()

	go func() {
		for c := range aCandidates {
			b.AddICECandidate(c)
		}
	}()
	go func() {
		for c := range bCandidates {
			a.AddICECandidate(c)
		}
	}()

	// Automatic renegotiation stays suppressed: the round is driven by
	// hand here, the way the session drives the opening call.

	// One audio track gives the bundle a transport to negotiate.
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}, "audio", "live-test")
	require.NoError(t, err)
	require.NoError(t, a.PublishTracks([]webrtc.TrackLocal{track}))

	offer, err := a.CreateOffer()
	require.NoError(t, err)

	answer, err := b.CreateAnswer(offer)
	require.NoError(t, err)
	require.NoError(t, a.SetRemoteAnswer(answer))

	deadline := time.After(15 * time.Second)
	for connected := 0; connected < 2; {
		select {
		case <-aConnected:
			connected++
		case <-bConnected:
			connected++
		case <-deadline:
			t.Fatalf("connections did not reach connected: a=%s b=%s",
				a.ConnectionState(), b.ConnectionState())
		}
	}
}
