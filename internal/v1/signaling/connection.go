package signaling

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/See2et/bakopa-vr/bloom/internal/v1/logging"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/metrics"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/participant"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/ratelimit"
	"github.com/See2et/bakopa-vr/bloom/internal/v1/roommgr"
)

// wsConnection is the subset of *websocket.Conn this package depends on,
// mirroring the teacher's connection-abstraction idiom so a mock can drive
// the read/write pumps in tests without a real socket.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMissedPongs = 2
)

// connection is one participant's signaling WebSocket. It runs the same
// readPump/writePump goroutine pair, buffered send channel, and
// write-mutex-free-by-construction (writes only ever happen from
// writePump) design as the teacher's session.Client.
type connection struct {
	conn   wsConnection
	send   chan []byte
	id     participant.ID
	hub    *Handler
	limiter *ratelimit.SessionLimiter

	mu         sync.Mutex
	roomID     roommgr.ID
	joined     bool
	closedOnce sync.Once
}

func newConnection(conn wsConnection, id participant.ID, hub *Handler) *connection {
	return &connection{
		conn:    conn,
		send:    make(chan []byte, 64),
		id:      id,
		hub:     hub,
		limiter: ratelimit.NewSessionLimiter(ratelimit.RealClock{}, 20, time.Second),
	}
}

func (c *connection) currentRoom() (roommgr.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomID, c.joined
}

func (c *connection) setRoom(id roommgr.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = id
	c.joined = true
}

func (c *connection) clearRoom() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roomID = ""
	c.joined = false
}

func (c *connection) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		logging.Warn(context.Background(), "signaling connection send buffer full, dropping frame", zap.String("participantId", c.id.String()))
	}
}

func (c *connection) readPump() {
	defer func() {
		c.hub.handleAbnormalClose(c)
		c.conn.Close()
		metrics.DecConnection()
	}()

	c.conn.SetReadDeadline(time.Now().Add(maxMissedPongs * pingInterval))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(maxMissedPongs * pingInterval))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseAbnormalClosure, "ping timeout"))
			return
		}
		if messageType != websocket.TextMessage {
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseUnsupportedData, ""))
			return
		}

		msg, err := decodeClientMessage(data)
		if err != nil {
			c.enqueue(errorFrame(ErrorInvalidPayload, "malformed message"))
			continue
		}
		c.hub.dispatch(c, msg)
	}
}

func (c *connection) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
