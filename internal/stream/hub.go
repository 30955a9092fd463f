package stream

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nathanyu/trading-oms/internal/domain"
	"github.com/nathanyu/trading-oms/internal/telemetry"
)

const clientBufferSize = 256

// Hub fans order, execution and quote events out to websocket clients.
// Publishing never blocks: a client that cannot keep up is dropped.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	log      *slog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan domain.StreamEvent
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: telemetry.Component("stream"),
	}
}

// Publish sends an event to every connected client without blocking.
func (h *Hub) Publish(event domain.StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- event:
		default:
			h.log.Warn("stream client too slow, dropping connection")
			h.removeLocked(c)
		}
	}
}

// ServeWS upgrades an HTTP request and streams events until the client
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}

	c := &client{
		conn: conn,
		send: make(chan domain.StreamEvent, clientBufferSize),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	telemetry.StreamClients.Inc()

	go c.writePump()

	// Read loop exists only to observe the close handshake.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

// removeLocked drops a client. Caller must hold the hub lock. Closing the
// send channel terminates the write pump, which closes the connection.
func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	telemetry.StreamClients.Dec()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (c *client) writePump() {
	defer c.conn.Close()
	for event := range c.send {
		if err := c.conn.WriteJSON(event); err != nil {
			return
		}
	}
}
