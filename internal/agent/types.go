// Package agent implements the conversational agent that remembers users.
package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/memchat/internal/domain"
)

// ErrNoUser is returned when an agent is requested without a user identity.
var ErrNoUser = errors.New("agent requires a user id")

// DefaultDescription is the persona used when none is configured.
const DefaultDescription = `You are a helpful and friendly AI assistant with excellent memory.
- Remember important details about users and reference them naturally
- Maintain a warm, positive tone while being precise and helpful
- When appropriate, refer back to previous conversations and memories
- Always be truthful about what you remember or don't remember
- Keep responses conversational and engaging`

// Options configure a single agent handle.
type Options struct {
	Model     string
	UserID    string
	SessionID string

	EnableUserMemories     bool
	EnableSessionSummaries bool
	AddMemoryReferences    bool
	AddHistoryToMessages   bool
	HistoryDepth           int
	Markdown               bool
	Description            string
}

// RunResponse is the outcome of one agent run.
type RunResponse struct {
	Content      string
	Model        string
	SessionID    string
	InputTokens  int
	OutputTokens int
}

// String renders the response for display when no content was produced.
func (r *RunResponse) String() string {
	if r == nil {
		return ""
	}
	if r.Content != "" {
		return r.Content
	}
	return fmt.Sprintf("RunResponse(model=%s, session_id=%s)", r.Model, r.SessionID)
}

// Handle is an agent bound to one user and one session.
type Handle interface {
	// Run sends message to the model on behalf of userID and returns the reply.
	Run(ctx context.Context, message, userID string) (*RunResponse, error)

	// UserMemories lists what has been remembered about userID.
	UserMemories(ctx context.Context, userID string) ([]*domain.MemoryRecord, error)

	// SessionID returns the session the handle writes to.
	SessionID() string
}

// Factory constructs agent handles. An empty sessionID starts a new session.
type Factory interface {
	New(ctx context.Context, userID, sessionID string) (Handle, error)
}
