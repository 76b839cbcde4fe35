package relay

import (
	"log/slog"
	"sync"

	"github.com/goccy/go-json"
)

// Hub fans worker and theme messages out to every connected page.
type Hub struct {
	clients map[*Client]bool

	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client

	// Broadcast carries encoded messages bound for all pages.
	Broadcast chan []byte

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		Broadcast:  make(chan []byte, 64),
		logger:     logger,
	}
}

func (h *Hub) Run() {
	h.logger.Info("[RELAY] Starting hub event loop")
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.Broadcast:
			h.broadcast(message)
		}
	}
}

// Publish encodes a typed message and queues it for every page.
func (h *Hub) Publish(msgType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(Message{Type: msgType, Data: raw})
	if err != nil {
		return err
	}
	h.Broadcast <- payload
	return nil
}

// ClientCount reports how many pages are connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = true
	h.logger.Info("[RELAY] Page connected", "pages", len(h.clients))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Info("[RELAY] Page disconnected", "pages", len(h.clients))
}

func (h *Hub) broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for client := range h.clients {
		select {
		case client.send <- message:
			sent++
		default:
			// Page stopped draining its buffer, drop it.
			h.logger.Warn("[RELAY] Page buffer full, disconnecting")
			close(client.send)
			delete(h.clients, client)
		}
	}
	h.logger.Debug("[RELAY] Broadcast complete", "sent", sent, "bytes", len(message))
}
