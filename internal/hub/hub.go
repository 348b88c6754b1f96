// Package hub fans audit events out to connected WebSocket subscribers.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds a write to one subscriber so a stalled client cannot hold
// up the others.
const writeWait = 5 * time.Second

// AuditEvent describes one executed statement.
type AuditEvent struct {
	Type       string    `json:"type"` // "statement"
	DBID       string    `json:"db_id,omitempty"`
	DBType     string    `json:"db_type,omitempty"`
	SQL        string    `json:"sql"`
	Status     string    `json:"status"`
	Kind       string    `json:"kind,omitempty"`
	Rows       int64     `json:"rows"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

type Hub struct {
	subscribers map[*websocket.Conn]bool
	mu          sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribers[conn] = true
	slog.Info("Audit subscriber connected", "total_connections", len(h.subscribers))
}

func (h *Hub) Unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[conn]; ok {
		delete(h.subscribers, conn)
		conn.Close()
		slog.Info("Audit subscriber disconnected", "total_connections", len(h.subscribers))
	}
}

// Count is the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) Broadcast(event AuditEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Encode audit event failed", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.subscribers {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Warn("Audit broadcast failed", "error", err)
			conn.Close()
			delete(h.subscribers, conn)
		}
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.subscribers {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(h.subscribers, conn)
	}
}
