// Package chat drives a single chat conversation: it recognizes returning
// users, greets them and hands each message to their agent.
package chat

import (
	"github.com/ashureev/memchat/internal/agent"
	"github.com/ashureev/memchat/internal/domain"
)

// Phase is where a conversation is in its lifecycle.
type Phase string

const (
	PhaseUninitialized      Phase = "uninitialized"
	PhaseReadyNewUser       Phase = "ready_new_user"
	PhaseReadyReturningUser Phase = "ready_returning_user"
	PhaseAwaitingInput      Phase = "awaiting_input"
	PhaseProcessing         Phase = "processing"
)

// State is everything one chat front end remembers about its conversation.
// A State must only be driven by one caller at a time.
type State struct {
	Messages    []domain.ChatMessage
	UserID      string
	SessionID   string
	Agent       agent.Handle
	Initialized bool
	Phase       Phase
}

// NewState returns an uninitialized conversation.
func NewState() *State {
	return &State{Phase: PhaseUninitialized}
}

// History returns a copy of the conversation so far.
func (s *State) History() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(s.Messages))
	copy(out, s.Messages)
	return out
}

func (s *State) appendMessage(role domain.Role, content string) domain.ChatMessage {
	msg := domain.ChatMessage{Role: role, Content: content}
	s.Messages = append(s.Messages, msg)
	return msg
}
