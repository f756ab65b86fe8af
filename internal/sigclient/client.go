package sigclient

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"

	"github.com/carelinkhq/telecall/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the websocket connection to the signaling relay. Its typed
// send methods satisfy session.Signaler.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *protocol.Envelope
	outgoing  chan *protocol.Envelope
	done      chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewClient creates a signaling client for the relay at serverURL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *protocol.Envelope, 32),
		outgoing:  make(chan *protocol.Envelope, 32),
		done:      make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the pumps.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid relay URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect to relay: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		c.incoming <- &env
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Incoming returns the channel of relay envelopes.
func (c *Client) Incoming() <-chan *protocol.Envelope {
	return c.incoming
}

// Close shuts the connection down.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *Client) send(event protocol.Event, payload any) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	select {
	case c.outgoing <- env:
		return nil
	case <-c.done:
		return fmt.Errorf("send %s: connection closed", event)
	}
}

func marshalBlob(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal signal blob: %w", err)
	}
	return b, nil
}

/* -------- session.Signaler -------- */

func (c *Client) SendJoin(room string, identity protocol.Identity) error {
	return c.send(protocol.EventRoomJoin, protocol.JoinRequest{Room: room, Identity: identity})
}

func (c *Client) SendCallOffer(to string, offer webrtc.SessionDescription) error {
	blob, err := marshalBlob(offer)
	if err != nil {
		return err
	}
	return c.send(protocol.EventUserCall, protocol.Signal{To: to, Offer: blob})
}

func (c *Client) SendCallAnswer(to string, answer webrtc.SessionDescription) error {
	blob, err := marshalBlob(answer)
	if err != nil {
		return err
	}
	return c.send(protocol.EventCallAccepted, protocol.Signal{To: to, Answer: blob})
}

func (c *Client) SendNegoOffer(to string, offer webrtc.SessionDescription) error {
	blob, err := marshalBlob(offer)
	if err != nil {
		return err
	}
	return c.send(protocol.EventNegoNeeded, protocol.Signal{To: to, Offer: blob})
}

func (c *Client) SendNegoAnswer(to string, answer webrtc.SessionDescription) error {
	blob, err := marshalBlob(answer)
	if err != nil {
		return err
	}
	return c.send(protocol.EventNegoDone, protocol.Signal{To: to, Answer: blob})
}

func (c *Client) SendCandidate(to string, candidate webrtc.ICECandidateInit) error {
	blob, err := marshalBlob(candidate)
	if err != nil {
		return err
	}
	return c.send(protocol.EventICE, protocol.Signal{To: to, Candidate: blob})
}

func (c *Client) SendBusy(to string) error {
	return c.send(protocol.EventCallBusy, protocol.Signal{To: to})
}

func (c *Client) SendMediaToggle(room string, kind protocol.MediaKind, enabled bool) error {
	return c.send(protocol.EventMediaToggle, protocol.MediaToggle{Room: room, Kind: kind, Enabled: enabled})
}

func (c *Client) SendChat(msg protocol.ChatMessage) error {
	return c.send(protocol.EventChatMessage, msg)
}

func (c *Client) SendLeave(room, userID string) error {
	return c.send(protocol.EventUserLeave, protocol.Leave{Room: room, UserID: userID})
}

func (c *Client) SendEndAll(room string) error {
	return c.send(protocol.EventEndAll, protocol.EndAll{Room: room})
}
