package protocol

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate runs the struct-tag validation for any protocol payload.
func Validate(v any) error {
	return validate.Struct(v)
}

// signalRequires maps each targeted event to the opaque blob it must carry.
// call:busy carries no blob at all.
var signalRequires = map[Event]string{
	EventUserCall:     "offer",
	EventNegoNeeded:   "offer",
	EventCallAccepted: "answer",
	EventNegoDone:     "answer",
	EventICE:          "candidate",
	EventCallBusy:     "",
}

// TargetedEvent reports whether the event is relayed to a single named
// connection rather than handled or room-broadcast by the relay.
func TargetedEvent(event Event) bool {
	_, ok := signalRequires[event]
	return ok
}

// ValidateFor checks the structural shape of a Signal for the given event:
// a target must be named and the blob the event kind requires must be present.
// The blob contents are never inspected.
func (s *Signal) ValidateFor(event Event) error {
	if err := validate.Struct(s); err != nil {
		return err
	}

	field, ok := signalRequires[event]
	if !ok {
		return fmt.Errorf("%s is not a targeted event", event)
	}

	var blob []byte
	switch field {
	case "offer":
		blob = s.Offer
	case "answer":
		blob = s.Answer
	case "candidate":
		blob = s.Candidate
	case "":
		return nil
	}

	if len(blob) == 0 {
		return fmt.Errorf("%s requires %s", event, field)
	}
	return nil
}
