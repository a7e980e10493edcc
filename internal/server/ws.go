package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ayusman/palmrest/internal/gesture"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Hub pushes the latest palming status to WebSocket clients.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	last    gesture.Status
	log     logrus.FieldLogger
}

// NewHub creates an empty Hub.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		log:     log.WithField("component", "hub"),
	}
}

// ServeHTTP upgrades the request and sends the last known status, then every new one.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade")
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	if err := h.send(conn, h.last); err != nil {
		delete(h.clients, conn)
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	defer h.remove(conn)

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Publish records s and sends it to every client. Clients that fail are dropped.
func (h *Hub) Publish(s gesture.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = s
	for conn := range h.clients {
		if err := h.send(conn, s); err != nil {
			h.log.WithError(err).Debug("dropping client")
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Last returns the most recently published status.
func (h *Hub) Last() gesture.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// send writes s to conn. Callers hold h.mu, which also serializes writers.
func (h *Hub) send(conn *websocket.Conn, s gesture.Status) error {
	msg, err := json.Marshal(s)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}
