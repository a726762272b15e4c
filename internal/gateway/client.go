package gateway

import (
	"sync"
	"time"

	"github.com/BearBump/DispatchBox/internal/models"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

type binding struct {
	sessionID string
	role      models.Participant
}

// Client is one socket connection. Inbound frames are handled in order on
// the read goroutine; outbound frames go through send.
type Client struct {
	id   string
	gw   *Gateway
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	bindings []binding
	closed   bool
}

func (c *Client) bind(sessionID string, role models.Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.bindings {
		if b.sessionID == sessionID && b.role == role {
			return
		}
	}
	c.bindings = append(c.bindings, binding{sessionID: sessionID, role: role})
}

func (c *Client) takeBindings() []binding {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.bindings
	c.bindings = nil
	return out
}

// enqueue never blocks; a client that cannot keep up loses the frame.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) readPump() {
	defer func() {
		c.gw.disconnect(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.gw.log.WithError(err).WithField("socket_id", c.id).Warn("unexpected websocket close")
			}
			return
		}
		c.gw.handle(c, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.gw.log.WithError(err).WithField("socket_id", c.id).Warn("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
