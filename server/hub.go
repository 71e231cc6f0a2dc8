package server

import (
	"sync"

	"github.com/lamassu-labs/mentowatch/logger"
	"github.com/lamassu-labs/mentowatch/sym"
)

// Hub tracks connected dashboard clients and fans broadcast messages
// out to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	stopOnce   sync.Once
}

// NewHub creates a hub; call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    map[*Client]bool{},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			logger.Debugw(sym.Server+" client connected", logger.FieldClientID, c.id, logger.FieldCount, n)

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			logger.Debugw(sym.Server+" client disconnected", logger.FieldClientID, c.id, logger.FieldCount, n)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer; drop the message rather than
					// stalling every other client.
					logger.Warnw(sym.Server+" dropping message to slow client", logger.FieldClientID, c.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop shuts the hub down and disconnects all clients. Safe to call
// more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
