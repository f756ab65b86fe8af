package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelinkhq/telecall/internal/appointment"
	"github.com/carelinkhq/telecall/internal/protocol"
	"github.com/carelinkhq/telecall/internal/signaling"
)

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

// TestServeWs_JoinOverWebsocket runs one authorized join through a real
// websocket upgrade and both connection pumps.
func TestServeWs_JoinOverWebsocket(t *testing.T) {
	authority := appointment.NewMemoryAuthority()
	authority.Put(&appointment.Appointment{
		ID:            "appt-1",
		RoomID:        "room-1",
		DoctorUserID:  "doc-1",
		PatientUserID: "pat-1",
		Status:        appointment.StatusConfirmed,
	})

	hub := signaling.NewHub(authority, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(ServeWs(hub))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	join := protocol.MustEnvelope(protocol.EventRoomJoin, protocol.JoinRequest{
		Room:     "room-1",
		Identity: protocol.Identity{UserID: "pat-1", Role: protocol.RolePatient},
	})
	require.NoError(t, conn.WriteJSON(join))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply protocol.Envelope
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, protocol.EventRoomJoined, reply.Event)

	var joined protocol.RoomJoined
	require.NoError(t, reply.Decode(&joined))
	assert.Equal(t, "room-1", joined.Room)
	assert.Nil(t, joined.Peer)
}
