// Package gateway manages the push channel: WebSocket consumers, the
// initial price replay on connect, and tick fan-out with per-consumer
// failure isolation.
package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"stockrelayv1/internal/model"
	"stockrelayv1/internal/pricecache"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// eventStockUpdate is the push-channel event name for price updates.
const eventStockUpdate = "stockUpdate"

// Hub maintains the set of connected consumers and fans every tick out to
// all of them. One slow or broken consumer never stalls the rest: sends are
// non-blocking, and a full send buffer is treated as a disconnect.
type Hub struct {
	cache *pricecache.Cache

	mu      sync.RWMutex
	clients map[*Client]bool

	// Optional metrics hooks
	OnRegister   func(total int)
	OnUnregister func(total int)
	OnDrop       func()
}

// NewHub creates a Hub that replays the given cache to new consumers.
func NewHub(cache *pricecache.Cache) *Hub {
	return &Hub{
		cache:   cache,
		clients: make(map[*Client]bool),
	}
}

// Register adds a consumer and replays the full current cache content to it,
// one tick at a time, before any future broadcast reaches it. The replay and
// the membership update happen under the write lock so a concurrent
// Broadcast cannot interleave.
func (h *Hub) Register(c *Client) {
	ticks := h.cache.All()

	h.mu.Lock()
	for i := range ticks {
		c.enqueue(marshalEvent(&ticks[i]))
	}
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] consumer connected (%d total)", total)
	if h.OnRegister != nil {
		h.OnRegister(total)
	}
}

// Unregister removes a consumer and closes its send queue. Safe to call
// more than once for the same consumer.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	log.Printf("[gateway] consumer disconnected (%d total)", total)
	if h.OnUnregister != nil {
		h.OnUnregister(total)
	}
}

// Broadcast sends the tick to every registered consumer. A consumer whose
// send buffer is full is scheduled for removal, equivalent to a disconnect.
func (h *Hub) Broadcast(t model.Tick) {
	msg := marshalEvent(&t)

	var stalled []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.enqueue(msg) {
			stalled = append(stalled, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stalled {
		log.Println("[gateway] consumer send buffer full, dropping consumer")
		if h.OnDrop != nil {
			h.OnDrop()
		}
		h.Unregister(c)
		c.close()
	}
}

// ClientCount returns the number of connected consumers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll disconnects every consumer. Used during graceful shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Unregister(c)
		c.close()
	}
}

// HandleWS upgrades an HTTP connection and registers the consumer.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	conn.EnableWriteCompression(true)

	client := newClient(conn, h)
	h.Register(client)

	go client.writePump()
	go client.readPump()
}

// marshalEvent builds the stockUpdate envelope for one tick.
func marshalEvent(t *model.Tick) []byte {
	msg, _ := json.Marshal(map[string]interface{}{
		"type": eventStockUpdate,
		"data": t,
	})
	return msg
}
