package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/memchat/internal/domain"
)

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) CleanupExpiredSessions(context.Context, time.Duration) (int64, error) {
	c.calls.Add(1)
	return 0, c.err
}

func TestSweepExpiredSessions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, s.CreateSession(ctx, &domain.SessionRecord{
		SessionID: "stale", UserID: "alice", CreatedAt: old, UpdatedAt: old,
	}))

	assert.Equal(t, int64(1), sweepExpiredSessions(ctx, s, time.Hour))
	assert.Equal(t, int64(0), sweepExpiredSessions(ctx, s, time.Hour))
}

func TestSweepExpiredSessionsSwallowsErrors(t *testing.T) {
	t.Parallel()

	c := &countingCleaner{err: errors.New("database is locked")}
	assert.Equal(t, int64(0), sweepExpiredSessions(context.Background(), c, time.Hour))
	assert.Equal(t, int32(1), c.calls.Load())
}

func TestStartRetentionWorker(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &countingCleaner{}
	StartRetentionWorker(ctx, c, time.Hour, 10*time.Millisecond)
	require.Eventually(t, func() bool { return c.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	disabled := &countingCleaner{}
	StartRetentionWorker(ctx, disabled, 0, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), disabled.calls.Load())
}
