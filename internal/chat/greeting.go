package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ashureev/memchat/internal/agent"
	"github.com/ashureev/memchat/internal/domain"
)

// Fixed assistant messages.
const (
	GenericGreeting   = "Hello! I'm your AI assistant. What would you like to talk about today?"
	NewUserGreeting   = "Hello! I'm your AI assistant. Please tell me your name so I can remember you for future conversations."
	InitFailureReply  = "I'm sorry, there was an issue initializing the agent. Please refresh the page."
	errorReplyPattern = "I encountered an error: %s. Please try again."
)

// PersonalGreeting greets a remembered user by name.
func PersonalGreeting(userID string) string {
	return fmt.Sprintf("Hello %s! What would you like to discuss today?", userID)
}

// ErrorReply is shown when the agent fails to answer.
func ErrorReply(err error) string {
	return fmt.Sprintf(errorReplyPattern, err)
}

// Greeter picks the opening message for a conversation.
type Greeter struct {
	logger *slog.Logger
}

// NewGreeter creates a Greeter.
func NewGreeter(logger *slog.Logger) *Greeter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Greeter{logger: logger}
}

// Generate greets userID by name when the agent remembers anything about
// them, and falls back to the generic greeting otherwise.
func (g *Greeter) Generate(ctx context.Context, userID string, h agent.Handle) string {
	if h == nil || !domain.IsRealIdentity(userID) {
		return GenericGreeting
	}
	memories, err := h.UserMemories(ctx, userID)
	if err != nil {
		g.logger.Warn("Failed to load memories for greeting", "user_id", userID, "error", err)
		return GenericGreeting
	}
	if len(memories) == 0 {
		return GenericGreeting
	}
	return PersonalGreeting(userID)
}
