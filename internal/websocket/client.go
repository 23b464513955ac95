package websocket

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// ListenerReadLimit fits listener commands; broadcasters send whole
	// utterance buffers and need BroadcasterReadLimit.
	ListenerReadLimit    = 1024
	BroadcasterReadLimit = 64 * 1024

	sendBuffer = 256
)

// Client is one websocket connection inside a session room.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	SessionId uuid.UUID
	UserId    string

	// Broadcaster marks the ingress socket of a slot holder.
	Broadcaster bool

	// OnMessage receives every inbound text frame. Optional.
	OnMessage func(data []byte)

	ReadLimit int64

	// Buffered channel of outbound messages, closed by the hub only.
	Send chan []byte

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionId uuid.UUID, userId string) *Client {
	return &Client{
		Hub:       hub,
		Conn:      conn,
		SessionId: sessionId,
		UserId:    userId,
		ReadLimit: ListenerReadLimit,
		Send:      make(chan []byte, sendBuffer),
	}
}

// trySend queues data without blocking. It reports false when the buffer
// is full; sends after close are dropped silently.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// Deliver sends a frame to this client only, e.g. its own paragraphs.
func (c *Client) Deliver(data []byte) {
	if !c.trySend(data) {
		go c.Hub.Unregister(c)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Serve joins the room and pumps the connection until it closes.
func (c *Client) Serve() {
	c.Hub.Register(c)
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(c.ReadLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Hub", "Unexpected websocket close", map[string]interface{}{
					"session_id": c.SessionId.String(),
					"user_id":    c.UserId,
					"error":      err.Error(),
				})
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		if c.OnMessage != nil {
			c.OnMessage(data)
		}
	}
}

// writePump writes one websocket message per frame so clients can parse
// each as JSON.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
