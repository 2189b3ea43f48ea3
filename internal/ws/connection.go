package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Connection wraps one WebSocket transport session. Writes are serialized
// through a single writer goroutine; the connection id is minted here at
// establishment and is the only handle other components hold.
type Connection struct {
	id        string
	conn      *websocket.Conn
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded WebSocket connection. When resumeID is
// non-empty the wrapper reuses it so a recovered client keeps its identity;
// otherwise a fresh id is minted.
func NewConnection(conn *websocket.Conn, resumeID string) *Connection {
	id := resumeID
	if id == "" {
		id = uuid.New().String()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:      id,
		conn:    conn,
		writeCh: make(chan []byte, 100),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

// ID returns the opaque connection id.
func (c *Connection) ID() string {
	return c.id
}

// writeLoop is the single writer goroutine. Other goroutines only ever
// queue onto writeCh. It cancels the connection context on exit so queued
// writers fail with ErrConnectionClosed instead of feeding a dead socket;
// writeCh itself is never closed and is collected with the connection.
func (c *Connection) writeLoop() {
	defer c.cancel()

	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON serializes v and queues it for the writer. Safe for concurrent
// use; a write to a closed or stalled connection fails rather than blocks.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// Close tears down the transport. Idempotent.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
