package identity

import (
	"context"
	"fmt"
	"log/slog"
)

// OwnerLookup reports the user behind the most recently written memory.
type OwnerLookup interface {
	LatestMemoryOwner(ctx context.Context) (string, error)
}

// Resolver identifies a returning user from stored memories.
type Resolver struct {
	repo   OwnerLookup
	logger *slog.Logger
}

// NewResolver creates a Resolver backed by repo.
func NewResolver(repo OwnerLookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// Resolve returns the owner of the newest memory record. An empty id with a
// nil error means nobody has been remembered yet; a non-nil error means the
// store could not be consulted.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	if r.repo == nil {
		return "", nil
	}
	userID, err := r.repo.LatestMemoryOwner(ctx)
	if err != nil {
		return "", fmt.Errorf("resolve identity: %w", err)
	}
	if userID != "" {
		r.logger.Debug("Resolved returning user", "user_id", userID)
	}
	return userID, nil
}
