package session

import (
	"errors"
	"fmt"
)

var (
	ErrNoPeer           = errors.New("no peer in the room yet")
	ErrNotReady         = errors.New("call cannot start in this state")
	ErrNotEnded         = errors.New("session has not ended")
	ErrNoMedia          = errors.New("local media not running")
	ErrMediaUnavailable = errors.New("camera or microphone unavailable")
)

// CallError tags a failure with the operation and room it happened in.
type CallError struct {
	Op   string
	Room string
	Err  error
}

func (e *CallError) Error() string {
	if e.Room != "" {
		return fmt.Sprintf("%s (room %s): %v", e.Op, e.Room, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}

func newError(op, room string, err error) *CallError {
	return &CallError{Op: op, Room: room, Err: err}
}
