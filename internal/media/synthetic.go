package media

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

const (
	audioFrameInterval = 20 * time.Millisecond
	videoFrameInterval = 33 * time.Millisecond
)

// opusSilence is a minimal valid Opus frame decoding to silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// vp8Blank is a placeholder payload keeping the video track alive.
var vp8Blank = []byte{0x10, 0x00}

// SyntheticCapture produces sample-fed tracks without touching real
// devices: silence on the audio track, empty frames on video. It stands in
// for OS capture in headless deployments and in tests; real device capture
// plugs in behind the same Capture interface.
type SyntheticCapture struct{}

// NewSynthetic creates a synthetic capture source.
func NewSynthetic() *SyntheticCapture {
	return &SyntheticCapture{}
}

// Open implements Capture.
func (SyntheticCapture) Open() (Stream, error) {
	streamID := "consult-" + uuid.NewString()

	audio, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}, "audio", streamID)
	if err != nil {
		return nil, err
	}

	video, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeVP8,
		ClockRate: 90000,
	}, "video", streamID)
	if err != nil {
		return nil, err
	}

	s := &syntheticStream{
		audio: audio,
		video: video,
		enabled: map[Kind]bool{
			KindAudio: true,
			KindVideo: true,
		},
		done: make(chan struct{}),
	}

	go s.pump(audio, KindAudio, audioFrameInterval, opusSilence)
	go s.pump(video, KindVideo, videoFrameInterval, vp8Blank)

	return s, nil
}

type syntheticStream struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled map[Kind]bool
	stopped bool
	done    chan struct{}
}

func (s *syntheticStream) pump(track *webrtc.TrackLocalStaticSample, kind Kind, interval time.Duration, frame []byte) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if !s.Enabled(kind) {
				continue
			}
			track.WriteSample(media.Sample{Data: frame, Duration: interval})
		}
	}
}

func (s *syntheticStream) Tracks() []webrtc.TrackLocal {
	return []webrtc.TrackLocal{s.audio, s.video}
}

func (s *syntheticStream) SetEnabled(kind Kind, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled[kind] = enabled
}

func (s *syntheticStream) Enabled(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[kind]
}

func (s *syntheticStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.done)
}

func (s *syntheticStream) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
