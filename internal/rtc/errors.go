package rtc

import "errors"

var (
	// ErrNegotiationInProgress means an offer is already outstanding;
	// the caller must wait for the answer before offering again.
	ErrNegotiationInProgress = errors.New("negotiation already in progress")

	// ErrClosed means the manager was closed and not reset.
	ErrClosed = errors.New("peer connection closed")

	// ErrConnectionFailed is surfaced after the automatic ICE restart
	// has been spent and the connection still cannot recover.
	ErrConnectionFailed = errors.New("peer connection failed")
)
