package api

import (
	"net/http"
	"strings"

	"github.com/ashureev/memchat/internal/chat"
	"github.com/ashureev/memchat/internal/identity"
)

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Messages []MessageView `json:"messages"`
}

// GetChat returns the conversation of the calling browser, greeting it first
// when this is its first visit.
func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	uiSessionID := identity.UISessionIDFromContext(r.Context())
	if uiSessionID == "" {
		Error(w, http.StatusUnauthorized, "missing ui session")
		return
	}

	ctx := chat.WithChannel(r.Context(), chat.ChannelWeb)
	JSON(w, http.StatusOK, chatResponse{Messages: RenderMessages(h.chat.History(ctx, uiSessionID))})
}

// PostChat submits one message and returns the user and assistant messages
// it produced.
func (h *Handler) PostChat(w http.ResponseWriter, r *http.Request) {
	uiSessionID := identity.UISessionIDFromContext(r.Context())
	if uiSessionID == "" {
		Error(w, http.StatusUnauthorized, "missing ui session")
		return
	}

	if !h.rateLimiter.Allow(identity.IPFromRequest(r)) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	h.logger.Info("Chat message received",
		"ui_session_id", uiSessionID,
		"message_length", len(req.Message),
	)

	ctx := chat.WithChannel(r.Context(), chat.ChannelWeb)
	views := RenderMessages(h.chat.Send(ctx, uiSessionID, req.Message))
	if h.publisher != nil {
		h.publisher.Publish(uiSessionID, views)
	}
	JSON(w, http.StatusOK, chatResponse{Messages: views})
}

// ResetChat forgets the calling browser's conversation. The next GetChat
// starts over with a fresh greeting.
func (h *Handler) ResetChat(w http.ResponseWriter, r *http.Request) {
	uiSessionID := identity.UISessionIDFromContext(r.Context())
	if uiSessionID == "" {
		Error(w, http.StatusUnauthorized, "missing ui session")
		return
	}
	h.chat.Reset(uiSessionID)
	w.WriteHeader(http.StatusNoContent)
}
