package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/ashureev/memchat/internal/api"
	"github.com/ashureev/memchat/internal/chat"
	"github.com/ashureev/memchat/internal/identity"
)

// Limiter decides whether a client may send another message.
type Limiter interface {
	Allow(key string) bool
}

// clientMessage is what the browser sends.
type clientMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// serverMessage is what the browser receives.
type serverMessage struct {
	Type     string            `json:"type"`
	Messages []api.MessageView `json:"messages,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Handler serves the chat WebSocket.
type Handler struct {
	chat          api.ChatService
	hub           *Hub
	limiter       Limiter
	allowedOrigin string
	isDev         bool
}

// NewHandler creates a WebSocket chat handler. limiter may be nil.
func NewHandler(svc api.ChatService, hub *Hub, limiter Limiter, allowedOrigin string, isDev bool) *Handler {
	return &Handler{
		chat:          svc,
		hub:           hub,
		limiter:       limiter,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	uiSessionID := identity.UISessionIDFromContext(r.Context())
	if uiSessionID == "" {
		http.Error(w, "missing ui session", http.StatusUnauthorized)
		return
	}
	slog.Info("WebSocket connection request", "ui_session_id", uiSessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ui_session_id", uiSessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "ui_session_id", uiSessionID)
		}
	}()

	h.hub.Register(uiSessionID, ws)
	defer h.hub.Unregister(uiSessionID, ws)

	ctx := chat.WithChannel(r.Context(), chat.ChannelWebSocket)
	if err := h.sendHistory(ctx, ws, uiSessionID); err != nil {
		slog.Debug("Failed to send history", "error", err)
		return
	}

	h.inputLoop(ctx, ws, uiSessionID, identity.IPFromRequest(r))
	slog.Info("Chat stream ended", "ui_session_id", uiSessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *Handler) inputLoop(ctx context.Context, ws *websocket.Conn, uiSessionID, clientKey string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "ui_session_id", uiSessionID)
			} else {
				slog.Debug("WebSocket read ended", "error", err, "ui_session_id", uiSessionID)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.writeError(ctx, ws, "invalid message")
			continue
		}

		switch msg.Type {
		case "message":
			if strings.TrimSpace(msg.Content) == "" {
				h.writeError(ctx, ws, "message is required")
				continue
			}
			if h.limiter != nil && !h.limiter.Allow(clientKey) {
				h.writeError(ctx, ws, "rate limit exceeded")
				continue
			}
			turn := h.chat.Send(ctx, uiSessionID, msg.Content)
			h.hub.Publish(uiSessionID, api.RenderMessages(turn))
		case "reset":
			h.chat.Reset(uiSessionID)
			if err := h.sendHistory(ctx, ws, uiSessionID); err != nil {
				slog.Debug("Failed to send history after reset", "error", err)
				return
			}
		case "ping":
			if err := h.writeJSON(ctx, ws, serverMessage{Type: "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		default:
			h.writeError(ctx, ws, "unknown message type")
		}
	}
}

func (h *Handler) sendHistory(ctx context.Context, ws *websocket.Conn, uiSessionID string) error {
	history := api.RenderMessages(h.chat.History(ctx, uiSessionID))
	return h.writeJSON(ctx, ws, serverMessage{Type: "history", Messages: history})
}

func (h *Handler) writeError(ctx context.Context, ws *websocket.Conn, message string) {
	if err := h.writeJSON(ctx, ws, serverMessage{Type: "error", Error: message}); err != nil {
		slog.Debug("Failed to send error", "error", err)
	}
}

func (h *Handler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(writeCtx, websocket.MessageText, data)
}
