// Package server exposes the HTTP surface of the relay: the authenticated
// WebSocket admission endpoint, the internal delivery endpoint, and the
// health check.
package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/pushgate/pushgate/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// credentialFromRequest extracts the signed credential supplied with the
// handshake. It is accepted as a bearer token or a "token" query parameter,
// never from a regular message after the connection is established.
func credentialFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// WebSocketHandler is the connection gatekeeper. It verifies the handshake
// credential before upgrading; a connection is either admitted with its
// verified identity attached and joined to that identity's room, or refused
// outright. Identity always comes from the credential, never from the client.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	credential := credentialFromRequest(r)
	if credential == "" {
		logger.Warn().Str("remote", r.RemoteAddr).Msg("No token provided for socket auth")
		http.Error(w, "Authentication error", http.StatusUnauthorized)
		return
	}

	claims, err := auth.NewVerifier(currentConfig().JWTSecret).Verify(credential)
	if err != nil {
		logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Socket authentication failed")
		http.Error(w, "Authentication error", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	logger.Info().Str("user", claims.UserID.String()).Msg("Socket authentication successful")

	client := NewClient(conn, hub, claims.UserID.String(), r.RemoteAddr)

	// Register the client with the hub; the hub will launch the pump goroutines.
	client.hub.register <- client
}

// writeCORSHeaders attaches the permissive cross-origin headers carried on
// every response of the delivery surface so browser-based internal tools can
// call it from any origin.
func writeCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Msg("Error writing JSON response")
	}
}

// EmitNotificationHandler is the delivery bridge: a trusted internal caller
// posts a target identity plus an opaque payload, and the relay fans it out to
// every channel currently joined for that identity. Delivery is best effort;
// a target with no open channels still gets a success response. This endpoint
// carries no authentication of its own and must stay behind a trusted network
// boundary.
func EmitNotificationHandler(w http.ResponseWriter, r *http.Request) {
	writeCORSHeaders(w)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
		return
	}

	var req EmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn().Err(err).Msg("Failed to decode emit request body")
		writeJSON(w, http.StatusBadRequest, EmitResponse{Success: false, Error: "Invalid JSON body"})
		return
	}

	if req.UserID == "" || len(req.Notification) == 0 || string(req.Notification) == "null" {
		writeJSON(w, http.StatusBadRequest, EmitResponse{Success: false, Error: "Missing userId or notification"})
		return
	}

	payload, err := json.Marshal(Envelope{Type: EventNotification, Payload: req.Notification})
	if err != nil {
		logger.Error().Err(err).Str("user", req.UserID.String()).Msg("Failed to marshal notification envelope")
		writeJSON(w, http.StatusInternalServerError, EmitResponse{Success: false, Error: "Failed to encode notification"})
		return
	}

	delivered := hub.Broadcast(req.UserID.String(), payload)
	logger.Info().
		Str("user", req.UserID.String()).
		Int("delivered", delivered).
		Msg("Notification emitted")

	writeJSON(w, http.StatusOK, EmitResponse{Success: true})
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NotFoundHandler answers every undefined route/method combination on the
// HTTP surface.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	writeCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
}
