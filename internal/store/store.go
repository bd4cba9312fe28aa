// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/memchat/internal/domain"
)

// ErrUnavailable marks failures where the database could not be queried at
// all (missing table, locked or closed database). It is distinct from a query
// that simply found nothing, which returns a zero value and a nil error.
var ErrUnavailable = errors.New("store unavailable")

// SessionStore persists conversation sessions and their runs.
type SessionStore interface {
	// CreateSession inserts a new session record.
	CreateSession(ctx context.Context, session *domain.SessionRecord) error

	// GetSession retrieves a session by ID. Returns nil, nil when absent.
	GetSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)

	// SessionsForUser returns every session owned by userID, newest first.
	SessionsForUser(ctx context.Context, userID string) ([]*domain.SessionRecord, error)

	// UpdateSessionSummary replaces the rolling summary of a session.
	UpdateSessionSummary(ctx context.Context, sessionID, summary string) error

	// AppendRun records a completed exchange and touches the session.
	AppendRun(ctx context.Context, run *domain.RunRecord) error

	// RecentRuns returns up to limit most recent runs of a session, oldest first.
	RecentRuns(ctx context.Context, sessionID string, limit int) ([]*domain.RunRecord, error)
}

// MemoryStore persists facts remembered about users.
type MemoryStore interface {
	// AddMemory inserts a memory record.
	AddMemory(ctx context.Context, memory *domain.MemoryRecord) error

	// UserMemories returns all memories for a user, oldest first.
	UserMemories(ctx context.Context, userID string) ([]*domain.MemoryRecord, error)

	// LatestMemoryOwner returns the user ID attached to the most recently
	// created memory. Returns "", nil when there are no memories.
	LatestMemoryOwner(ctx context.Context) (string, error)
}

// Repository defines the full persistence surface used by the application.
type Repository interface {
	SessionStore
	MemoryStore

	// CleanupExpiredSessions removes sessions not updated within ttl.
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
