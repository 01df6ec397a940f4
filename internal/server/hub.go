// Package server coordinates room membership, notification fan-out, and
// connection cleanup for the pushgate relay via the Hub type.
package server

import (
	"context"
	"sync"
	"time"
)

// Hub is the room registry. It groups every live client connection under the
// user identity it authenticated as, so one user with several devices holds
// several channels in the same room. Registration and removal run through the
// hub's event loop; Broadcast reads a locked snapshot so a slow client can
// never stall membership changes for other users.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates and initializes a new Hub instance with all necessary
// channels and the room map. The returned Hub is ready to manage connections
// once Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// GetRegisterChan returns the channel used for registering admitted clients.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for removing clients on disconnect.
// This channel is write-only from the caller's perspective.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// RoomSize reports how many channels are currently joined for the identity.
func (h *Hub) RoomSize(userID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[userID])
}

// join adds the client to its identity's room, creating the room on first
// join. Idempotent if the client is already a member.
func (h *Hub) join(client *Client) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, ok := h.rooms[client.userID]
	if !ok {
		room = make(map[*Client]bool)
		h.rooms[client.userID] = room
	}
	client.closed = false
	room[client] = true
	return len(room)
}

// leave removes the client from its identity's room and deletes the room when
// it empties. Safe to call for a client that already left; returns whether the
// client was actually a member, so the caller closes the send channel once.
func (h *Hub) leave(client *Client) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, ok := h.rooms[client.userID]
	if !ok {
		return false
	}
	if _, member := room[client]; !member {
		return false
	}
	delete(room, client)
	client.closed = true
	if len(room) == 0 {
		delete(h.rooms, client.userID)
	}
	return true
}

// Run starts the hub's main event loop, handling client registration and
// removal. This method should be called in a separate goroutine as it runs
// until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				logger.Warn().Msg("Received nil client registration; skipping")
				continue
			}

			roomSize := h.join(client)
			logger.Info().
				Str("user", client.userID).
				Str("conn", client.id).
				Int("devices", roomSize).
				Msg("Client joined room")

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			if h.leave(client) {
				close(client.send)
				logger.Info().
					Str("user", client.userID).
					Str("conn", client.id).
					Msg("Client left room")
			}
		}
	}
}

// Broadcast delivers payload to every channel currently joined for userID and
// returns how many channels accepted it. Delivery is fire-and-forget per
// channel: a client whose send buffer is full is dropped from the room rather
// than allowed to block the others, and zero recipients is a normal outcome.
func (h *Hub) Broadcast(userID string, payload []byte) int {
	clients := h.roomSnapshot(userID)
	if len(clients) == 0 {
		logger.Debug().Str("user", userID).Msg("Broadcast with no connected recipients")
		return 0
	}

	delivered := 0
	var clientsToRemove []*Client
	for _, client := range clients {
		if h.safeSend(client, payload) {
			delivered++
		} else {
			clientsToRemove = append(clientsToRemove, client)
		}
	}

	h.removeFailedClients(clientsToRemove)

	logger.Debug().
		Str("user", userID).
		Int("delivered", delivered).
		Msg("Broadcast complete")
	return delivered
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Recovered from panic in safeSend")
		}
	}()

	// Hold the lock during the entire send operation to prevent race conditions
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	room, ok := h.rooms[client.userID]
	if !ok {
		return false
	}
	if _, member := room[client]; !member || client.closed {
		return false
	}

	// The send channel may close under a concurrent disconnect; the deferred
	// recover covers that window.
	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// roomSnapshot returns a thread-safe snapshot of the channels joined for userID.
func (h *Hub) roomSnapshot(userID string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	room := h.rooms[userID]
	clients := make([]*Client, 0, len(room))
	for client := range room {
		clients = append(clients, client)
	}
	return clients
}

// removeFailedClients removes clients that failed to receive messages and closes their channels
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		room, ok := h.rooms[client.userID]
		if !ok {
			continue
		}
		if _, member := room[client]; !member {
			continue
		}
		delete(room, client)
		client.closed = true
		if len(room) == 0 {
			delete(h.rooms, client.userID)
		}
		channelsToClose = append(channelsToClose, client.send)
		logger.Warn().
			Str("user", client.userID).
			Str("conn", client.id).
			Msg("Client removed due to full send buffer")
	}
	h.mutex.Unlock()

	// Close channels after releasing the lock
	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients gracefully closes all active client connections
func (h *Hub) shutdownClients() {
	logger.Info().Msg("Shutting down all client connections...")

	h.mutex.Lock()
	var clients []*Client
	for _, room := range h.rooms {
		for client := range room {
			clients = append(clients, client)
		}
	}
	h.mutex.Unlock()

	// Close all client connections
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					logger.Error().Err(err).Str("conn", client.id).Msg("Error closing client connection")
				}
			}
		}
	}

	logger.Info().Int("count", len(clients)).Msg("Closed client connections")
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines
// to complete. It returns after all client connections are closed and
// goroutines have finished, or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	logger.Info().Msg("Initiating hub shutdown...")

	// Signal shutdown
	h.cancel()

	// Wait for Run() to complete
	<-h.done

	// Wait for all client goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		logger.Warn().Msg("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}

var hub = NewHub()

// GetHub returns the global hub instance for shutdown coordination
func GetHub() *Hub {
	return hub
}
