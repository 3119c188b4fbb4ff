// Package hub owns the live WebSocket connections: at most one active
// connection per authenticated identity, with best-effort delivery.
// Durability is the conversation store's job; the hub never queues for
// offline recipients.
package hub

import (
	"encoding/json"
	"sync"

	"github.com/dhruvin2968/facebook-messaging/pkg/log"
)

type Hub struct {
	clients    map[string]*Client // clientID -> client
	users      map[string]*Client // userID -> active client (last writer wins)
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		users:      make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldClientID, client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				if id := client.Identity(); id != nil && h.users[id.ID] == client {
					delete(h.users, id.ID)
				}
				client.closeSend()
			}
			h.mu.Unlock()
			log.L().Debug().Str(log.FieldClientID, client.ID).Msg("client unregistered")

		case <-h.done:
			h.mu.Lock()
			for id, client := range h.clients {
				delete(h.clients, id)
				client.closeSend()
				client.Conn.Close()
			}
			h.users = make(map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Bind makes client the active connection for userID. A previous
// connection for the same identity is superseded and closed: last
// writer wins, so a reconnect replaces rather than duplicates.
// Returns the superseded client, if any.
func (h *Hub) Bind(client *Client, userID string) *Client {
	h.mu.Lock()
	prev := h.users[userID]
	h.users[userID] = client
	h.mu.Unlock()

	if prev != nil && prev != client {
		log.L().Info().
			Str(log.FieldUserID, userID).
			Str(log.FieldClientID, prev.ID).
			Msg("superseding previous connection")
		prev.Conn.Close()
		return prev
	}
	return nil
}

// Deliver pushes a frame to userID's active connection. A no-op when the
// user is not connected: the recipient reads the message from the store
// on its next subscribe or history fetch.
func (h *Hub) Deliver(userID string, message interface{}) {
	h.mu.RLock()
	client := h.users[userID]
	h.mu.RUnlock()

	if client == nil || client.State() != StateActive {
		return
	}
	if err := client.SendJSON(message); err != nil {
		log.L().Warn().Err(err).Str(log.FieldUserID, userID).Msg("deliver failed")
	}
}

// IsBound reports whether client is still the active connection for
// userID. Teardown paths check this so a superseded connection's cleanup
// does not unregister the presence of the identity's new connection.
func (h *Hub) IsBound(userID string, client *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.users[userID] == client
}

// IsConnected reports whether userID has an active bound connection.
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c := h.users[userID]
	return c != nil && c.State() == StateActive
}

// BroadcastAll fans a frame out to every connected client without
// blocking; clients with a full send buffer miss the frame and catch up
// on the next one.
func (h *Hub) BroadcastAll(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.L().Error().Err(err).Msg("broadcast marshal failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		client.trySend(data)
	}
}

// Stop closes every connection and stops the run loop.
func (h *Hub) Stop() {
	close(h.done)
}
