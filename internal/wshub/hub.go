// Package wshub fans completed sensor frames out to WebSocket subscribers.
// Delivery is best-effort per subscriber: a slow or broken connection never
// blocks the bridge or the other subscribers.
package wshub

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// Client represents a single WebSocket subscriber connection.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
	Done chan struct{}
}

// Hub manages the subscriber set and broadcasts frames.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	frames  atomic.Uint64
	dropped atomic.Uint64
}

// Stats is a snapshot of the hub's delivery counters.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Frames      uint64 `json:"framesBroadcast"`
	Dropped     uint64 `json:"framesDropped"`
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register adds a subscriber to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	slog.Info("subscriber connected", "clientID", client.ID, "subscribers", len(h.clients))
}

// Unregister removes a subscriber. The client's Done channel is closed by
// the handler that created the client, not here, so cleanup order stays with
// the owner of the connection.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[clientID]; ok {
		delete(h.clients, clientID)
		slog.Info("subscriber disconnected", "clientID", clientID, "subscribers", len(h.clients))
	}
}

// Broadcast sends one serialized frame to every subscriber. The send is
// non-blocking: a subscriber whose channel is full simply misses this frame.
// Failures are isolated per subscriber and never reach the caller.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.frames.Add(1)
	for _, client := range h.clients {
		select {
		case client.Send <- payload:
		case <-client.Done:
			// Subscriber is shutting down.
		default:
			h.dropped.Add(1)
			slog.Warn("subscriber channel full, dropping frame", "clientID", client.ID)
		}
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns a snapshot of the delivery counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	subscribers := len(h.clients)
	h.mu.RUnlock()
	return Stats{
		Subscribers: subscribers,
		Frames:      h.frames.Load(),
		Dropped:     h.dropped.Load(),
	}
}

// CloseAll closes every subscriber connection. Used during shutdown; the
// per-connection handlers notice the closed connection and unregister
// themselves.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		if err := client.Conn.Close(); err != nil {
			slog.Debug("closing subscriber connection", "clientID", id, "error", err)
		}
		delete(h.clients, id)
	}
}
