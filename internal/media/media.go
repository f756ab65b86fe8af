package media

import "github.com/pion/webrtc/v4"

// Kind discriminates the two track kinds a consultation carries.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// Stream is an open set of local capture tracks. Stop must be called on
// every exit path from an active call; a leaked open capture handle is a
// defect, not a style choice.
type Stream interface {
	// Tracks returns the publishable tracks, audio first.
	Tracks() []webrtc.TrackLocal

	// SetEnabled mutes or unmutes one kind without releasing the device.
	SetEnabled(kind Kind, enabled bool)

	// Enabled reports the current state of one kind.
	Enabled(kind Kind) bool

	// Stop releases the underlying devices and ends every track.
	Stop()

	// Stopped reports whether Stop has run.
	Stopped() bool
}

// Capture acquires local media. Acquisition can fail (device busy, no
// permission); callers must treat that as a call-setup abort.
type Capture interface {
	Open() (Stream, error)
}
