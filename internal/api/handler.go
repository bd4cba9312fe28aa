// Package api provides HTTP handlers for the memchat API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/memchat/internal/config"
	"github.com/ashureev/memchat/internal/domain"
	"github.com/ashureev/memchat/internal/judge"
)

// maxRequestBodySize bounds JSON request bodies (1MB).
const maxRequestBodySize = 1 << 20

// ChatService runs the conversation behind each browser.
type ChatService interface {
	History(ctx context.Context, uiSessionID string) []domain.ChatMessage
	Send(ctx context.Context, uiSessionID, text string) []domain.ChatMessage
	Reset(uiSessionID string)
}

// Classifier judges emails.
type Classifier interface {
	Classify(ctx context.Context, raw string) (*judge.Verdict, error)
}

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Publisher fans new chat messages out to live connections of a browser.
type Publisher interface {
	Publish(uiSessionID string, msgs []MessageView)
}

// Handler serves the chat, email and health endpoints.
type Handler struct {
	chat        ChatService
	classifier  Classifier
	db          Pinger
	publisher   Publisher
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// NewHandler creates a Handler. classifier and db may be nil, which disables
// the email endpoint and the database health check respectively.
func NewHandler(chat ChatService, classifier Classifier, db Pinger, cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	limit, window := 20, time.Minute
	if cfg != nil {
		limit, window = cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window
	}
	return &Handler{
		chat:        chat,
		classifier:  classifier,
		db:          db,
		rateLimiter: NewRateLimiter(limit, window),
		logger:      logger,
	}
}

// SetPublisher registers where chat turns made over HTTP are broadcast.
func (h *Handler) SetPublisher(p Publisher) {
	h.publisher = p
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Route("/api", func(r chi.Router) {
		r.Get("/chat", h.GetChat)
		r.Post("/chat", h.PostChat)
		r.Delete("/chat", h.ResetChat)
		r.Get("/email/samples", h.EmailSamples)
		r.Post("/email/classify", h.ClassifyEmail)
	})
}

// Close stops background work owned by the handler.
func (h *Handler) Close() {
	h.rateLimiter.Stop()
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
