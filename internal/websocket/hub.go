package websocket

import (
	"context"
	"sync"
)

// Hub tracks the connected roster streams per user.
type Hub struct {
	mu sync.RWMutex

	// clients maps client ID to client
	clients map[string]*Client

	// users maps user ID to that user's clients
	users map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		users:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
	}
}

// Run starts the hub's event loop. Clients still connected when ctx ends
// are kicked.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.RLock()
			for _, c := range h.clients {
				c.Kick()
			}
			h.mu.RUnlock()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// DisconnectUser kicks every session of uid and returns how many there
// were.
func (h *Hub) DisconnectUser(uid string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[uid] {
		c.Kick()
	}
	return len(h.users[uid])
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetUserClientCount(uid string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[uid])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
	if _, ok := h.users[client.UserID]; !ok {
		h.users[client.UserID] = make(map[*Client]struct{})
	}
	h.users[client.UserID][client] = struct{}{}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
	if set, ok := h.users[client.UserID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.users, client.UserID)
		}
	}
}
