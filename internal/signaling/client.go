package signaling

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carelinkhq/telecall/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP blobs stay well below this.
	maxMessageSize = 64 * 1024
)

// Client wraps a single websocket connection to the relay. Membership fields
// (RoomID, Identity) are owned by the hub loop and must not be touched from
// the pumps.
type Client struct {
	// ID is the relay-assigned connection identifier. It is what peers
	// address targeted signals to.
	ID string

	Hub  *Hub
	Conn *websocket.Conn

	// RoomID is the room this connection is a member of, or "".
	RoomID string

	// Identity is the authorized identity, set by the hub after a
	// successful join.
	Identity protocol.Identity

	// Send is the buffered channel of outbound envelopes. The hub writes
	// to it; writePump drains it onto the websocket.
	Send chan *protocol.Envelope
}

// ReadPump pumps envelopes from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine, keeping at
// most one reader on the connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env protocol.Envelope
		if err := c.Conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "conn", c.ID, "error", err)
			}
			break
		}

		c.Hub.Inbound <- Inbound{Client: c, Env: &env}
	}
}

// WritePump pumps envelopes from the hub to the websocket connection and
// keeps the connection alive with periodic pings. One writer per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(env); err != nil {
				slog.Warn("websocket write failed", "conn", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
