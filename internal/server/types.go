// Package server defines the wire-level payload types exchanged over
// notification channels and shared helpers reused across client and hub logic.
package server

import (
	"encoding/json"
	"strings"

	"github.com/pushgate/pushgate/internal/auth"
)

// Envelope is the JSON frame exchanged over an established channel. Type names
// the event ("ping", "pong", "notification"); Payload is opaque to the relay.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event names used on the wire.
const (
	EventPing         = "ping"
	EventPong         = "pong"
	EventNotification = "notification"
)

// EmitRequest is the body accepted by the delivery endpoint. UserID accepts a
// string or numeric identity; Notification is forwarded verbatim, the relay
// enforces no content schema.
type EmitRequest struct {
	UserID       auth.Identity   `json:"userId"`
	Notification json.RawMessage `json:"notification"`
}

// EmitResponse is the body returned by the delivery endpoint.
type EmitResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
