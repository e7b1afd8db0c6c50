// Package ws maintains the set of live dashboard subscribers and pushes
// alert events to them. Sends are fire-and-forget: a subscriber that
// cannot keep up or has gone away is pruned, never waited on.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run owns the client set until the context is cancelled.
func (hub *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			hub.mu.Lock()
			for client := range hub.clients {
				close(client.Send)
				delete(hub.clients, client)
			}
			hub.mu.Unlock()
			return

		case client := <-hub.register:
			hub.mu.Lock()
			hub.clients[client] = true
			count := len(hub.clients)
			hub.mu.Unlock()
			slog.Info("Subscriber connected", "component", "Hub", "subscribers", count)

		case client := <-hub.unregister:
			hub.mu.Lock()
			if _, ok := hub.clients[client]; ok {
				delete(hub.clients, client)
				close(client.Send)
			}
			count := len(hub.clients)
			hub.mu.Unlock()
			slog.Info("Subscriber disconnected", "component", "Hub", "subscribers", count)

		case message := <-hub.broadcast:
			hub.mu.Lock()
			for client := range hub.clients {
				select {
				case client.Send <- message:
				default:
					// Blocked or gone; prune rather than wait.
					close(client.Send)
					delete(hub.clients, client)
					slog.Warn("Pruned unresponsive subscriber", "component", "Hub")
				}
			}
			hub.mu.Unlock()
		}
	}
}

// Register adds a client to the hub.
func (hub *Hub) Register(client *Client) {
	hub.register <- client
}

// Unregister removes a client from the hub.
func (hub *Hub) Unregister(client *Client) {
	hub.unregister <- client
}

// Broadcast pushes a structured event to every subscriber. It never
// blocks the caller beyond the hub's own buffer.
func (hub *Hub) Broadcast(event any) {
	message, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal broadcast event", "component", "Hub", "error", err)
		return
	}
	select {
	case hub.broadcast <- message:
	default:
		slog.Warn("Broadcast buffer full, dropping event", "component", "Hub")
	}
}

// ClientCount returns the current subscriber count.
func (hub *Hub) ClientCount() int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	return len(hub.clients)
}
