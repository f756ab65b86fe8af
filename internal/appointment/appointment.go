package appointment

import (
	"context"
	"errors"
	"time"
)

// Status values the booking API uses. The relay only cares about Cancelled.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

// Appointment is the authorization fact for one consultation room: who the
// two legitimate parties are and whether the booking still stands.
type Appointment struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"roomId"`
	DoctorUserID  string    `json:"doctorUserId"`
	DoctorName    string    `json:"doctorName"`
	PatientUserID string    `json:"patientUserId"`
	PatientName   string    `json:"patientName"`
	Status        string    `json:"status"`
	ScheduledAt   time.Time `json:"scheduledAt"`
}

// Participant reports whether userID is one of the appointment's two parties.
func (a *Appointment) Participant(userID string) bool {
	return userID == a.DoctorUserID || userID == a.PatientUserID
}

// ErrNotFound means no appointment exists for the requested room.
var ErrNotFound = errors.New("appointment not found")

// Authority supplies the appointment behind a room identifier. The relay
// performs exactly one Lookup per join (and one per end-for-all request) and
// never writes back.
type Authority interface {
	Lookup(ctx context.Context, roomID string) (*Appointment, error)
}
