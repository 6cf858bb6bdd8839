package chattest

import (
	"log/slog"
	"sync"
)

type broadcastMessage struct {
	roomID  string
	data    []byte
	exclude *Client
}

// Hub fans frames out to the clients joined to a room.
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex

	broadcast chan *broadcastMessage
	quit      chan struct{}
	once      sync.Once
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		broadcast: make(chan *broadcastMessage, 256),
		quit:      make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client == msg.exclude || !client.inRoom(msg.roomID) {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Register adds c before any frame is queued for it. It reports false once
// the hub has shut down.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.quit:
		return false
	default:
	}
	h.clients[c] = struct{}{}
	slog.Debug("stub client connected", "user_id", c.UserID)
	return true
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		slog.Debug("stub client disconnected", "user_id", c.UserID)
	}
}

func (h *Hub) BroadcastToRoom(roomID string, data []byte, exclude *Client) {
	select {
	case h.broadcast <- &broadcastMessage{roomID: roomID, data: data, exclude: exclude}:
	case <-h.quit:
	}
}

// SendTo queues data for one client if it is still registered.
func (h *Hub) SendTo(c *Client, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// DisconnectAll drops every connection, as a backend restart would.
func (h *Hub) DisconnectAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// RoomSize counts the clients joined to roomID.
func (h *Hub) RoomSize(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.inRoom(roomID) {
			n++
		}
	}
	return n
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Shutdown() {
	h.once.Do(func() { close(h.quit) })
}
