// Package dashboard implements spec.md §6's read-only Dashboard external
// interface: a REST status surface plus a WebSocket push channel for
// positions, balance, and quote quality. Adapted from
// pkg/trader/streaming/hub.go's broadcast-hub shape, re-targeted at this
// engine's event types.
package dashboard

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventType identifies the kind of payload a push carries.
type EventType string

const (
	EventPosition   EventType = "position"
	EventBalance    EventType = "balance"
	EventFeedHealth EventType = "feed_health"
	EventDecision   EventType = "decision"
	EventHeartbeat  EventType = "heartbeat"
)

// Event is one push sent to every subscribed dashboard client.
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Hub manages WebSocket connections and fans out Events to subscribers.
type Hub struct {
	log *zap.Logger

	clients    map[*client]bool
	broadcast  chan Event
	register   chan *client
	unregister chan *client
	mu         sync.RWMutex

	upgrader websocket.Upgrader
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a dashboard push hub. Call Run in its own goroutine.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run drives the hub's event loop until stop is closed.
func (h *Hub) Run(stop <-chan struct{}) {
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-stop:
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.broadcastEvent(event)

		case <-heartbeat.C:
			h.Broadcast(Event{Type: EventHeartbeat, Data: map[string]int{"clients": h.ClientCount()}})
		}
	}
}

func (h *Hub) broadcastEvent(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		if h.log != nil {
			h.log.Warn("failed to marshal dashboard event", zap.Error(err))
		}
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			close(c.send)
			delete(h.clients, c)
		}
	}
}

// Broadcast queues event for delivery to every connected client.
func (h *Hub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		if h.log != nil {
			h.log.Warn("dashboard broadcast channel full, dropping event", zap.String("type", string(event.Type)))
		}
	}
}

// BroadcastPosition pushes a position snapshot.
func (h *Hub) BroadcastPosition(pos interface{}) { h.Broadcast(Event{Type: EventPosition, Data: pos}) }

// BroadcastBalance pushes a balance update.
func (h *Hub) BroadcastBalance(balance interface{}) {
	h.Broadcast(Event{Type: EventBalance, Data: balance})
}

// BroadcastFeedHealth pushes a feed-health snapshot.
func (h *Hub) BroadcastFeedHealth(health interface{}) {
	h.Broadcast(Event{Type: EventFeedHealth, Data: health})
}

// BroadcastDecision pushes a terminal decision outcome for observability.
func (h *Hub) BroadcastDecision(decision interface{}) {
	h.Broadcast(Event{Type: EventDecision, Data: decision})
}

// ClientCount returns the number of currently connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request to a WebSocket and registers the client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.log != nil {
			h.log.Warn("dashboard ws upgrade failed", zap.Error(err))
		}
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

// readPump discards client messages (the dashboard channel is one-way) but
// must keep reading so pong frames and close frames are processed.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
