package chat

import (
	"context"

	"github.com/ashureev/memchat/internal/domain"
)

// Service runs conversations for many UI sessions at once.
type Service struct {
	ctrl *Controller
	reg  *Registry
}

// NewService creates a Service.
func NewService(ctrl *Controller, reg *Registry) *Service {
	return &Service{ctrl: ctrl, reg: reg}
}

// History initializes the conversation for uiSessionID if needed and returns
// its messages.
func (s *Service) History(ctx context.Context, uiSessionID string) []domain.ChatMessage {
	state, release := s.reg.Acquire(uiSessionID)
	defer release()

	s.ctrl.Initialize(ctx, state)
	return state.History()
}

// Send submits text to the conversation of uiSessionID and returns every
// message appended by the call, including the greeting when the
// conversation had not been initialized yet.
func (s *Service) Send(ctx context.Context, uiSessionID, text string) []domain.ChatMessage {
	state, release := s.reg.Acquire(uiSessionID)
	defer release()

	before := len(state.Messages)
	s.ctrl.Submit(ctx, state, text)
	return append([]domain.ChatMessage(nil), state.Messages[before:]...)
}

// Reset discards the conversation of uiSessionID.
func (s *Service) Reset(uiSessionID string) {
	s.reg.Remove(uiSessionID)
}
