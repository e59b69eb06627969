package gateway

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/experimentein/research-agent/internal/agent"
	"github.com/experimentein/research-agent/internal/logging"
)

// eventBuffer bounds the per-client event queue. Slow consumers drop
// events rather than stalling a turn.
const eventBuffer = 32

// eventHub fans turn events out to connected WebSocket clients.
type eventHub struct {
	mu      sync.Mutex
	clients map[*eventClient]bool
	log     *logging.Logger
}

type eventClient struct {
	conn *websocket.Conn
	send chan agent.TurnEvent
}

func newEventHub(log *logging.Logger) *eventHub {
	return &eventHub{
		clients: make(map[*eventClient]bool),
		log:     log.Sub("events"),
	}
}

// Broadcast queues an event for every connected client. Never blocks.
func (h *eventHub) Broadcast(evt agent.TurnEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- evt:
		default:
			h.log.Debug().Msg("dropping turn event for slow client")
		}
	}
}

func (h *eventHub) add(conn *websocket.Conn) *eventClient {
	client := &eventClient{conn: conn, send: make(chan agent.TurnEvent, eventBuffer)}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	return client
}

func (h *eventHub) remove(client *eventClient) {
	h.mu.Lock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
}

func (h *eventHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// closeAll disconnects every client, used during shutdown.
func (h *eventHub) closeAll() {
	h.mu.Lock()
	clients := make([]*eventClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.conn.Close()
		h.remove(client)
	}
}

// writePump forwards queued events to the connection until the queue closes
// or a write fails.
func (c *eventClient) writePump() {
	for evt := range c.send {
		if err := c.conn.WriteJSON(evt); err != nil {
			return
		}
	}
}
