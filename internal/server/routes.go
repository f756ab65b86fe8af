package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/carelinkhq/telecall/internal/protocol"
	"github.com/carelinkhq/telecall/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// The browser client is served from a different origin; origin
	// policy is enforced upstream by the reverse proxy.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns an http.HandlerFunc that upgrades the request and hands
// the connection to the hub.
func ServeWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}

		client := &signaling.Client{
			ID:   uuid.NewString(),
			Hub:  hub,
			Conn: conn,
			Send: make(chan *protocol.Envelope, 256),
		}

		client.Hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}

// Health reports liveness for the load balancer.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling relay is healthy."))
}
