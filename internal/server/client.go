package server

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client is one live WebSocket connection. It owns a bounded send queue that
// the write pump drains, and joins rooms through the hub's registry.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	log            *slog.Logger
	maxMessageSize int64
	limiter        *rate.Limiter
	rateLimit      RateLimitConfig

	mu     sync.RWMutex
	closed bool
	userID string

	leaveOnce sync.Once
}

// NewClient creates a Client for an upgraded connection. conn may be nil in
// tests; such a client never starts pumps.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := uuid.NewString()
	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, cfg.SendQueueSize),
		hub:            hub,
		addr:           addr,
		log:            hub.log.With("conn_id", id, "addr", addr),
		maxMessageSize: cfg.MaxMessageSize,
		limiter:        newRateLimiter(cfg.RateLimit),
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the process-unique connection identifier.
func (c *Client) ID() string { return c.id }

// Addr returns the remote address the connection came from.
func (c *Client) Addr() string { return c.addr }

// UserID returns the user bound by setup, or "" before setup.
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// bindUser records the user for this connection and returns the previous one.
func (c *Client) bindUser(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous := c.userID
	c.userID = userID
	return previous
}

// GetSendChan returns the client's send channel for reading outgoing frames.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// Send queues an encoded frame without blocking. It fails with
// ErrSendQueueFull when the queue is at capacity and ErrConnectionClosed
// once the client was released.
func (c *Client) Send(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Emit encodes an outbound event and queues it.
func (c *Client) Emit(event string, data []byte) error {
	frame, err := encodeEvent(event, data)
	if err != nil {
		return err
	}
	return c.Send(frame)
}

// close marks the client closed and closes the send queue, which makes the
// write pump send a close frame. It reports whether this call closed it.
func (c *Client) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}

func (c *Client) isClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// logReadError logs why the read loop is stopping.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("message exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.log.Info("client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Info("client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		c.log.Warn("unexpected WebSocket close", "error", err)
	default:
		c.log.Info("WebSocket read ended", "reason", err)
	}
}

// allowEvent reports whether the event fits in the client's rate limit.
func (c *Client) allowEvent() bool {
	if c.limiter != nil && !c.limiter.Allow() {
		c.log.Warn("rate limit exceeded; discarding event",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// handleFrame routes one inbound frame. Errors stay with the event.
func (c *Client) handleFrame(messageType int, raw []byte) {
	if messageType != websocket.TextMessage {
		c.log.Warn("dropping non-text frame", "type", messageType)
		return
	}
	if err := c.hub.router.Dispatch(c, raw); err != nil {
		c.log.Warn("dropping inbound event", "error", err)
	}
}

// readPump runs for the lifetime of the connection. Its exit is the only
// disconnect signal: the hub releases the client from every room.
func (c *Client) readPump() {
	defer func() {
		c.hub.disconnect(c)
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn("error closing connection in readPump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		messageType, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.allowEvent() {
			continue
		}

		c.handleFrame(messageType, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case frame, ok := <-c.send:
		return c.handleFrameOut(frame, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.log.Warn("error closing connection in writePump", "error", err)
	}
}

// handleFrameOut writes one queued frame and returns false if the connection should be closed
func (c *Client) handleFrameOut(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing frame", "error", err)
		}
		return false
	}
	return true
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing close message", "error", err)
		}
	}
	return false
}

// handlePing sends a ping message to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn("error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn("error writing ping message", "error", err)
		}
		return false
	}
	return true
}
