package chat

import (
	"context"
	"fmt"

	"github.com/ashureev/memchat/internal/domain"
)

// SessionLister lists the stored sessions of a user.
type SessionLister interface {
	SessionsForUser(ctx context.Context, userID string) ([]*domain.SessionRecord, error)
}

// Loader finds the session a returning user should resume.
type Loader struct {
	repo SessionLister
}

// NewLoader creates a Loader.
func NewLoader(repo SessionLister) *Loader {
	return &Loader{repo: repo}
}

// LoadLatest returns the id of the user's most recently created session, or
// "" when the user has none.
func (l *Loader) LoadLatest(ctx context.Context, userID string) (string, error) {
	if l.repo == nil || userID == "" {
		return "", nil
	}
	sessions, err := l.repo.SessionsForUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load sessions for %s: %w", userID, err)
	}
	latest := domain.Latest(sessions)
	if latest == nil {
		return "", nil
	}
	return latest.SessionID, nil
}
