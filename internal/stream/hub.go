// Package stream pushes chat messages to browsers over WebSocket.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/memchat/internal/api"
)

const writeTimeout = 5 * time.Second

// Hub tracks the live connections of every UI session. One browser may have
// several tabs open; all of them see every new message.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[*websocket.Conn]struct{}
}

var _ api.Publisher = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[*websocket.Conn]struct{}),
	}
}

// Register adds conn to the UI session.
func (h *Hub) Register(uiSessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[uiSessionID]; !exists {
		h.active[uiSessionID] = make(map[*websocket.Conn]struct{})
	}
	h.active[uiSessionID][conn] = struct{}{}
	slog.Info("Chat stream registered", "ui_session_id", uiSessionID, "connections", len(h.active[uiSessionID]))
}

// Unregister removes conn from the UI session.
func (h *Hub) Unregister(uiSessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.active[uiSessionID]
	if !ok {
		return
	}
	if _, exists := conns[conn]; !exists {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.active, uiSessionID)
	}
	slog.Info("Chat stream unregistered", "ui_session_id", uiSessionID)
}

// Connections returns how many connections the UI session has.
func (h *Hub) Connections(uiSessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[uiSessionID])
}

// Publish sends msgs to every connection of the UI session. Failed writes are
// logged; the reader side of the connection cleans it up.
func (h *Hub) Publish(uiSessionID string, msgs []api.MessageView) {
	data, err := json.Marshal(serverMessage{Type: "messages", Messages: msgs})
	if err != nil {
		slog.Warn("Failed to encode chat messages", "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.active[uiSessionID]))
	for c := range h.active[uiSessionID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := c.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Debug("Chat stream write failed", "ui_session_id", uiSessionID, "error", err)
		}
		cancel()
	}
}

// CloseAll terminates every connection, for server shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conns := range h.active {
		for c := range conns {
			_ = c.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(h.active, id)
	}
}
