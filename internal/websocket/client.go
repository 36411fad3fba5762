package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 256
)

// MessageHandler handles one inbound text frame. Frames for the client are
// written with Client.Write; the call blocks the read loop until it returns.
type MessageHandler func(ctx context.Context, client *Client, data []byte)

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	Conn *websocket.Conn

	SessionId string

	// Buffered channel of outbound frames.
	send chan []byte

	mu       sync.Mutex
	closed   bool
	dropping bool
}

func newClient(hub *Hub, conn *websocket.Conn, sessionId string) *Client {
	return &Client{Hub: hub, Conn: conn, SessionId: sessionId, send: make(chan []byte, sendBuffer)}
}

// Write queues a frame for the connection. It returns false once the client is gone or too slow.
func (c *Client) Write(frame []byte) bool {
	return c.enqueue(frame)
}

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

// startDrop reports true only for the first caller while the client is still open.
func (c *Client) startDrop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.dropping {
		return false
	}
	c.dropping = true
	return true
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump pumps inbound frames to handler until the connection fails.
func (c *Client) readPump(ctx context.Context, handler MessageHandler) {
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn(hubModule, "Unexpected websocket close", map[string]interface{}{
					"session_id": c.SessionId,
					"error":      err.Error(),
				})
			}
			return
		}
		if msgType != websocket.TextMessage || handler == nil {
			continue
		}
		handler(ctx, c, data)
		// A long turn must not eat the pong window.
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

// writePump pumps queued frames to the websocket connection.
func (c *Client) writePump(cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
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
