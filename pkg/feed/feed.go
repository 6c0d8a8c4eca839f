// Package feed streams simulator snapshots to websocket subscribers.
// It is transport only: the read model it carries is produced entirely
// by the experiment package, and nothing here feeds back into the
// simulation.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/driftline/rollout/pkg/experiment"
)

// Message is the wire envelope for one snapshot.
type Message struct {
	RunID     string              `json:"run_id"`
	Timestamp string              `json:"timestamp"`
	Snapshot  experiment.Snapshot `json:"snapshot"`
}

// Hub fans snapshots out to connected clients. Slow clients are
// dropped rather than allowed to stall the broadcast.
type Hub struct {
	runID      string
	logger     *slog.Logger
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}
	clients    map[*client]bool
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub with a fresh run id.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		runID:      uuid.NewString(),
		logger:     logger.With("component", "feed"),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		clients:    make(map[*client]bool),
	}
}

// RunID identifies this simulation run in every message.
func (h *Hub) RunID() string {
	return h.runID
}

// Run pumps registrations and broadcasts until ctx is cancelled. On
// cancellation every pending and future register/unregister unblocks,
// so client pumps cannot leak past shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			h.logger.Debug("feed client connected", "clients", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Publish broadcasts one snapshot to all subscribers.
func (h *Hub) Publish(snap experiment.Snapshot) {
	msg := Message{
		RunID:     h.runID,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Snapshot:  snap,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal snapshot", "error", err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.logger.Warn("feed broadcast buffer full, dropping snapshot")
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

func (c *client) writePump() {
	defer func() {
		_ = c.conn.Close()
	}()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump discards inbound frames; it exists to observe the close
// handshake and unregister promptly.
func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
