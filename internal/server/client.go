// Package server manages individual notification channels, handling read/write
// pumps, the liveness probe, rate limiting, and lifecycle control for each
// authenticated connection.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client represents one live channel: a single WebSocket connection admitted
// for an authenticated user. The identity is assigned once at admission and
// never changes for the lifetime of the connection.
type Client struct {
	id             string
	userID         string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient creates a new Client bound to the verified identity extracted at
// handshake time. The client's send channel is buffered to absorb bursts of
// notifications without blocking the hub.
func NewClient(conn *websocket.Conn, hub *Hub, userID, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	limiter := newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)

	return &Client{
		id:             uuid.NewString(),
		userID:         userID,
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		addr:           addr,
		closed:         false,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    limiter,
		rateLimit:      cfg.RateLimit,
	}
}

// UserID returns the identity this channel was admitted under.
func (c *Client) UserID() string {
	return c.userID
}

// GetSendChan returns the client's send channel for reading outgoing messages.
// This channel is read-only from the caller's perspective.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		logger.Error().Err(err).Str("conn", c.id).Msg("Error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			logger.Error().Err(err).Str("conn", c.id).Msg("Error setting read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs appropriate error messages based on the error type
// and returns true if the read loop should break
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		logger.Warn().
			Str("conn", c.id).
			Int64("limit", c.maxMessageSize).
			Msg("Inbound frame exceeded maximum size")
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		logger.Info().Str("user", c.userID).Str("conn", c.id).Msg("Client disconnected")
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		logger.Info().Str("user", c.userID).Str("conn", c.id).Msg("Client connection closed")
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		logger.Warn().Err(err).Str("conn", c.id).Msg("Unexpected WebSocket error")
		return true
	}

	logger.Warn().Err(err).Str("conn", c.id).Msg("WebSocket read error")
	return true
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		logger.Warn().
			Str("conn", c.id).
			Int("burst", c.rateLimit.Burst).
			Dur("interval", c.rateLimit.RefillInterval).
			Msg("Rate limit exceeded; discarding message")
		return false
	}
	return true
}

// processMessage handles one inbound frame. The relay pushes notifications
// server-to-client only, so the sole meaningful inbound event is the liveness
// probe; anything else is logged and dropped.
func (c *Client) processMessage(rawMessage []byte) bool {
	var envelope Envelope
	if err := json.Unmarshal(rawMessage, &envelope); err != nil {
		logger.Warn().Err(err).Str("conn", c.id).Msg("Invalid message from client")
		return false
	}

	switch envelope.Type {
	case EventPing:
		return c.answerProbe()
	default:
		logger.Debug().
			Str("conn", c.id).
			Str("type", envelope.Type).
			Msg("Ignoring unsupported inbound event")
		return false
	}
}

// answerProbe echoes the fixed liveness acknowledgment over the same channel.
// The probe has no registry side effects.
func (c *Client) answerProbe() bool {
	ack, err := json.Marshal(Envelope{Type: EventPong})
	if err != nil {
		logger.Error().Err(err).Str("conn", c.id).Msg("Error marshaling probe acknowledgment")
		return false
	}

	select {
	case c.send <- ack:
		return true
	default:
		// Send buffer full; the client observes the missed ack as a timeout.
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		// During hub shutdown the Run loop is no longer draining unregister;
		// the rooms are being torn down wholesale, so skip the send.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil {
			if !isExpectedCloseError(err) {
				logger.Error().Err(err).Str("conn", c.id).Msg("Error closing connection in readPump")
			}
		}
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing. Hub shutdown stops the pump promptly instead
// of leaving it parked until the next keepalive tick.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	case <-c.hub.ctx.Done():
		return c.writeCloseMessage()
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		// Only log unexpected connection close errors
		if !isExpectedCloseError(err) {
			logger.Error().Err(err).Str("conn", c.id).Msg("Error closing connection in writePump")
		}
	}
}

// handleMessage processes outgoing messages and returns false if the connection should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		logger.Error().Err(err).Str("conn", c.id).Msg("Error setting write deadline")
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	return c.writeTextMessage(message)
}

// writeCloseMessage sends a close message to the client
func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			logger.Error().Err(err).Str("conn", c.id).Msg("Error writing close message")
		}
	}
	return false
}

// writeTextMessage writes a text message and any queued messages
func (c *Client) writeTextMessage(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		logger.Error().Err(err).Str("conn", c.id).Msg("Error creating writer")
		return false
	}

	if !c.writeMessageContent(w, message) {
		return false
	}

	if !c.writeQueuedMessages(w) {
		return false
	}

	return c.closeWriter(w)
}

// writeMessageContent writes the main message content
func (c *Client) writeMessageContent(w io.WriteCloser, message []byte) bool {
	if _, err := w.Write(message); err != nil {
		logger.Error().Err(err).Str("conn", c.id).Msg("Error writing message")
		return false
	}
	return true
}

// writeQueuedMessages writes any additional queued messages
func (c *Client) writeQueuedMessages(w io.WriteCloser) bool {
	n := len(c.send)
	for i := 0; i < n; i++ {
		if !c.writeQueuedMessage(w) {
			return false
		}
	}
	return true
}

// writeQueuedMessage writes a single queued message with newline separator
func (c *Client) writeQueuedMessage(w io.WriteCloser) bool {
	if _, err := w.Write([]byte{'\n'}); err != nil {
		logger.Error().Err(err).Str("conn", c.id).Msg("Error writing newline")
		return false
	}
	if _, err := w.Write(<-c.send); err != nil {
		logger.Error().Err(err).Str("conn", c.id).Msg("Error writing queued message")
		return false
	}
	return true
}

// closeWriter closes the message writer
func (c *Client) closeWriter(w io.WriteCloser) bool {
	if err := w.Close(); err != nil {
		logger.Error().Err(err).Str("conn", c.id).Msg("Error closing writer")
		return false
	}
	return true
}

// handlePing sends a transport-level ping to keep the connection alive
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		logger.Error().Err(err).Str("conn", c.id).Msg("Error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			logger.Error().Err(err).Str("conn", c.id).Msg("Error writing ping message")
		}
		return false
	}
	return true
}
