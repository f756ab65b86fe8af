package appointment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Lookup(t *testing.T) {
	appt := Appointment{
		ID:            "appt-1",
		RoomID:        "room-1",
		DoctorUserID:  "doc-1",
		DoctorName:    "Dr. House",
		PatientUserID: "pat-1",
		PatientName:   "John Doe",
		Status:        StatusConfirmed,
		ScheduledAt:   time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/api/appointments/room/room-1":
			json.NewEncoder(w).Encode(lookupResponse{Success: true, Data: appt})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(lookupResponse{Success: false, Message: "not found"})
		}
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "service-token")

	got, err := client.Lookup(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.DoctorUserID)
	assert.Equal(t, StatusConfirmed, got.Status)
	assert.True(t, got.Participant("pat-1"))
	assert.False(t, got.Participant("stranger"))

	_, err = client.Lookup(context.Background(), "no-such-room")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPClient_LookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "")
	_, err := client.Lookup(context.Background(), "room-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestHTTPClient_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appointments", r.URL.Path)
		json.NewEncoder(w).Encode(listResponse{Success: true, Data: []Appointment{
			{RoomID: "room-1", Status: StatusConfirmed},
			{RoomID: "room-2", Status: StatusPending},
		}})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL, "user-token")
	appts, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, "room-2", appts[1].RoomID)
}

func TestMemoryAuthority(t *testing.T) {
	m := NewMemoryAuthority()
	m.Put(&Appointment{RoomID: "room-1", DoctorUserID: "doc-1", Status: StatusConfirmed})

	got, err := m.Lookup(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", got.DoctorUserID)

	// Lookup returns a copy; mutating it must not touch the stored record.
	got.Status = StatusCancelled
	again, err := m.Lookup(context.Background(), "room-1")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, again.Status)

	_, err = m.Lookup(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
