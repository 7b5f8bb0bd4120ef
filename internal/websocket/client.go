package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client is one roster stream connection.
type Client struct {
	ID     string          // Unique client ID
	UserID string          // Authenticated user ID
	Conn   *websocket.Conn // WebSocket connection
	Send   chan []byte     // Outbound frames

	mu        sync.Mutex // Protects conn writes
	kick      chan struct{}
	kickOnce  sync.Once
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 1),
		kick:   make(chan struct{}),
	}
}

// WriteLoop writes frames and pings until ctx ends, the client is kicked or
// a write fails. It closes the connection on the way out, which also ends
// the reader.
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.kick:
			c.mu.Lock()
			_ = c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session ended"),
				time.Now().Add(writeWait))
			c.mu.Unlock()
			return
		case msg := <-c.Send:
			c.mu.Lock()
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.Conn.WriteMessage(websocket.TextMessage, msg)
			c.mu.Unlock()
			if err != nil {
				return
			}
		case <-ticker.C:
			c.mu.Lock()
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.Conn.WriteMessage(websocket.PingMessage, []byte("ping"))
			c.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// ReadLoop discards inbound messages and returns when the peer goes away.
func (c *Client) ReadLoop() {
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// SendMessage queues a frame without blocking. Every roster frame is a full
// snapshot, so a queued frame that has not been written yet is replaced.
func (c *Client) SendMessage(msg []byte) {
	for {
		select {
		case c.Send <- msg:
			return
		default:
		}
		select {
		case <-c.Send:
		default:
		}
	}
}

// Kick ends the session.
func (c *Client) Kick() {
	c.kickOnce.Do(func() { close(c.kick) })
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.Conn.Close()
		c.mu.Unlock()
	})
}
