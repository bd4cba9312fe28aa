package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/memchat/internal/shared"
)

// DefaultRetentionInterval is how often the retention worker sweeps.
const DefaultRetentionInterval = 5 * time.Minute

// SessionCleaner deletes sessions idle for longer than a ttl.
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context, ttl time.Duration) (int64, error)
}

// StartRetentionWorker runs a background goroutine that periodically removes
// sessions idle for longer than ttl. A non-positive ttl disables the worker.
func StartRetentionWorker(ctx context.Context, repo SessionCleaner, ttl, interval time.Duration) {
	if ttl <= 0 {
		slog.Info("Session retention disabled")
		return
	}
	if interval <= 0 {
		interval = DefaultRetentionInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepExpiredSessions(ctx, repo, ttl)
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpiredSessions(ctx context.Context, repo SessionCleaner, ttl time.Duration) int64 {
	deleted, err := repo.CleanupExpiredSessions(ctx, ttl)
	if err != nil {
		// A busy database is retried on the next tick.
		if shared.IsSQLiteConflictError(err) {
			slog.Debug("Retention worker skipped sweep, database busy", "error", err)
			return 0
		}
		slog.Error("Retention worker failed to cleanup expired sessions", "error", err)
		return 0
	}
	if deleted > 0 {
		slog.Info("Retention worker cleaned up expired sessions", "count", deleted)
	}
	return deleted
}
