package server

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	sendBufferSize = 32
	writeDeadline  = 5 * time.Second
)

var errConnClosed = errors.New("connection closed")

// conn is one websocket client. Writes go through the buffered send channel
// so broadcasts never block on a slow socket; an overflowing client is
// dropped rather than stalling the room.
type conn struct {
	id   string
	sock *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newConn(id string, sock *websocket.Conn) *conn {
	return &conn{
		id:   id,
		sock: sock,
		send: make(chan []byte, sendBufferSize),
	}
}

// trySend queues data without blocking. Returns an error when the buffer is
// full or the connection is closed.
func (c *conn) trySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

func (c *conn) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.sock.Close()
	c.mu.Unlock()
}

// writePump drains the send channel onto the socket until it closes.
func (c *conn) writePump() {
	for data := range c.send {
		if err := c.sock.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
			slog.Debug("ws set write deadline", "conn_id", c.id, "err", err)
			return
		}
		if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("ws write failed", "conn_id", c.id, "err", err)
			return
		}
	}
}
