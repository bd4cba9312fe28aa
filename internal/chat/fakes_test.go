package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ashureev/memchat/internal/agent"
	"github.com/ashureev/memchat/internal/domain"
)

type fakeResolver struct {
	userID string
	err    error
	calls  int
}

func (f *fakeResolver) Resolve(context.Context) (string, error) {
	f.calls++
	return f.userID, f.err
}

type fakeSessions struct {
	sessions []*domain.SessionRecord
	err      error
}

func (f *fakeSessions) SessionsForUser(_ context.Context, userID string) ([]*domain.SessionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.SessionRecord
	for _, s := range f.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeHandle struct {
	sessionID string
	memories  []*domain.MemoryRecord
	memErr    error
	reply     *agent.RunResponse
	runErr    error
	runs      []string
}

func (h *fakeHandle) SessionID() string { return h.sessionID }

func (h *fakeHandle) UserMemories(context.Context, string) ([]*domain.MemoryRecord, error) {
	return h.memories, h.memErr
}

func (h *fakeHandle) Run(_ context.Context, message, _ string) (*agent.RunResponse, error) {
	h.runs = append(h.runs, message)
	if h.runErr != nil {
		return nil, h.runErr
	}
	if h.reply != nil {
		return h.reply, nil
	}
	return &agent.RunResponse{Content: "echo: " + message, SessionID: h.sessionID}, nil
}

type factoryCall struct {
	userID    string
	sessionID string
}

type fakeFactory struct {
	mu     sync.Mutex
	handle *fakeHandle
	err    error
	calls  []factoryCall
}

func (f *fakeFactory) New(_ context.Context, userID, sessionID string) (agent.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, factoryCall{userID: userID, sessionID: sessionID})
	if f.err != nil {
		return nil, f.err
	}
	h := f.handle
	if h == nil {
		h = &fakeHandle{}
	}
	if sessionID == "" {
		sessionID = "generated-session"
	}
	h.sessionID = sessionID
	return h, nil
}

var errStoreDown = errors.New("store unavailable: no such table: agent_memory")

func memoryFor(userID string) *domain.MemoryRecord {
	return &domain.MemoryRecord{ID: "m1", UserID: userID, Memory: "likes go", CreatedAt: time.Now()}
}
