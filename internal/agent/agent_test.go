package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/memchat/internal/config"
	"github.com/ashureev/memchat/internal/domain"
	"github.com/ashureev/memchat/internal/llm"
	"github.com/ashureev/memchat/internal/store"
)

// fakeLLM answers chat, extraction and summary calls from canned values.
type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	memories string
	summary  string
	chatErr  error
	requests []*llm.Request
}

func (f *fakeLLM) Provider() string { return "fake" }

func (f *fakeLLM) Chat(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)

	switch {
	case req.JSON:
		if f.memories == "" {
			return &llm.Response{Content: `{"memories": []}`}, nil
		}
		return &llm.Response{Content: f.memories}, nil
	case req.System == summaryPrompt:
		return &llm.Response{Content: f.summary}, nil
	case f.chatErr != nil:
		return nil, f.chatErr
	default:
		return &llm.Response{Model: "fake-model", Content: f.reply, InputTokens: 7, OutputTokens: 3}, nil
	}
}

func (f *fakeLLM) chatRequests() []*llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*llm.Request
	for _, r := range f.requests {
		if !r.JSON && r.System != summaryPrompt {
			out = append(out, r)
		}
	}
	return out
}

func newTestRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func allFeatures() config.AgentConfig {
	return config.AgentConfig{
		EnableUserMemories:     true,
		EnableSessionSummaries: true,
		AddMemoryReferences:    true,
		AddHistoryToMessages:   true,
		HistoryDepth:           5,
		Markdown:               true,
	}
}

func TestFactoryCreatesSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	f := NewFactory(allFeatures(), "gpt-4o", &fakeLLM{}, repo, nil)
	h, err := f.New(ctx, "Frank", "")
	require.NoError(t, err)
	require.NotEmpty(t, h.SessionID())

	sessions, err := repo.SessionsForUser(ctx, "Frank")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, h.SessionID(), sessions[0].SessionID)

	again, err := f.New(ctx, "Frank", h.SessionID())
	require.NoError(t, err)
	assert.Equal(t, h.SessionID(), again.SessionID())

	sessions, err = repo.SessionsForUser(ctx, "Frank")
	require.NoError(t, err)
	assert.Len(t, sessions, 1, "resuming must not create another session")
}

func TestFactoryRequiresUser(t *testing.T) {
	t.Parallel()

	f := NewFactory(allFeatures(), "gpt-4o", &fakeLLM{}, newTestRepo(t), nil)
	_, err := f.New(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoUser)
}

func TestRunPersistsRunMemoriesAndSummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)
	client := &fakeLLM{
		reply:    "Nice to meet you, Frank!",
		memories: "```json\n{\"memories\": [\"User's name is Frank.\", \"user's name is  frank.\"]}\n```",
		summary:  "Frank said hello.",
	}

	h, err := NewFactory(allFeatures(), "gpt-4o", client, repo, nil).New(ctx, "Frank", "")
	require.NoError(t, err)

	resp, err := h.Run(ctx, "I am Frank", "Frank")
	require.NoError(t, err)
	assert.Equal(t, "Nice to meet you, Frank!", resp.Content)
	assert.Equal(t, h.SessionID(), resp.SessionID)

	runs, err := repo.RecentRuns(ctx, h.SessionID(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "I am Frank", runs[0].UserMessage)

	memories, err := h.UserMemories(ctx, "Frank")
	require.NoError(t, err)
	require.Len(t, memories, 1, "duplicate memories are collapsed")
	assert.Equal(t, "User's name is Frank.", memories[0].Memory)

	owner, err := repo.LatestMemoryOwner(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Frank", owner)

	session, err := repo.GetSession(ctx, h.SessionID())
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "Frank said hello.", session.Summary)
}

func TestRunIncludesHistoryMemoriesAndSummary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)
	client := &fakeLLM{reply: "ok", summary: "talking about tea"}

	now := time.Now()
	require.NoError(t, repo.AddMemory(ctx, &domain.MemoryRecord{
		ID: "m1", UserID: "alice", Memory: "Alice likes green tea.", CreatedAt: now, UpdatedAt: now,
	}))

	h, err := NewFactory(allFeatures(), "gpt-4o", client, repo, nil).New(ctx, "alice", "")
	require.NoError(t, err)

	_, err = h.Run(ctx, "first", "alice")
	require.NoError(t, err)
	_, err = h.Run(ctx, "second", "alice")
	require.NoError(t, err)

	calls := client.chatRequests()
	require.Len(t, calls, 2)
	last := calls[1]

	assert.True(t, strings.HasPrefix(last.System, "You are a helpful and friendly AI assistant"))
	assert.Contains(t, last.System, markdownInstruction)
	assert.Contains(t, last.System, "Alice likes green tea.")
	assert.Contains(t, last.System, "talking about tea")
	assert.Equal(t, "gpt-4o", last.Model)

	require.Len(t, last.Messages, 3)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "first"}, last.Messages[0])
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "ok"}, last.Messages[1])
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "second"}, last.Messages[2])
}

func TestRunReferencesMemoriesWithoutExtracting(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)
	client := &fakeLLM{reply: "ok", memories: `{"memories": ["Frank lives in Vienna."]}`}

	now := time.Now()
	require.NoError(t, repo.AddMemory(ctx, &domain.MemoryRecord{
		ID: "m1", UserID: "Frank", Memory: "Frank likes Go.", CreatedAt: now, UpdatedAt: now,
	}))

	cfg := config.AgentConfig{AddMemoryReferences: true}
	h, err := NewFactory(cfg, "gpt-4o", client, repo, nil).New(ctx, "Frank", "")
	require.NoError(t, err)

	_, err = h.Run(ctx, "I moved to Vienna", "Frank")
	require.NoError(t, err)

	calls := client.chatRequests()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].System, "Frank likes Go.")
	assert.Len(t, client.requests, 1, "no extraction call without user memories enabled")

	memories, err := repo.UserMemories(ctx, "Frank")
	require.NoError(t, err)
	assert.Len(t, memories, 1)
}

func TestRunWithoutReferencesOmitsMemories(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)
	client := &fakeLLM{reply: "ok"}

	now := time.Now()
	require.NoError(t, repo.AddMemory(ctx, &domain.MemoryRecord{
		ID: "m1", UserID: "Frank", Memory: "Frank likes Go.", CreatedAt: now, UpdatedAt: now,
	}))

	cfg := config.AgentConfig{EnableUserMemories: true}
	h, err := NewFactory(cfg, "gpt-4o", client, repo, nil).New(ctx, "Frank", "")
	require.NoError(t, err)

	_, err = h.Run(ctx, "hello", "Frank")
	require.NoError(t, err)

	calls := client.chatRequests()
	require.Len(t, calls, 1)
	assert.NotContains(t, calls[0].System, "Frank likes Go.")
}

func TestRunHistoryDepthIsRespected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)
	client := &fakeLLM{reply: "ok"}

	cfg := config.AgentConfig{AddHistoryToMessages: true, HistoryDepth: 2}
	h, err := NewFactory(cfg, "gpt-4o", client, repo, nil).New(ctx, "bob", "")
	require.NoError(t, err)

	for _, msg := range []string{"a", "b", "c", "d"} {
		_, err := h.Run(ctx, msg, "bob")
		require.NoError(t, err)
	}

	calls := client.chatRequests()
	require.Len(t, calls, 4)
	last := calls[3]
	require.Len(t, last.Messages, 5)
	assert.Equal(t, "b", last.Messages[0].Content)
	assert.Equal(t, "c", last.Messages[2].Content)
	assert.NotContains(t, last.System, markdownInstruction)
}

func TestRunErrorIsReturned(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)
	boom := errors.New("rate limited")

	h, err := NewFactory(allFeatures(), "gpt-4o", &fakeLLM{chatErr: boom}, repo, nil).New(ctx, "carol", "")
	require.NoError(t, err)

	resp, err := h.Run(ctx, "hello", "carol")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, boom)

	runs, err := repo.RecentRuns(ctx, h.SessionID(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunSurvivesBadExtraction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := newTestRepo(t)

	h, err := NewFactory(allFeatures(), "gpt-4o", &fakeLLM{reply: "hi", memories: "not json"}, repo, nil).New(ctx, "dave", "")
	require.NoError(t, err)

	resp, err := h.Run(ctx, "hello there", "dave")
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content)

	memories, err := h.UserMemories(ctx, "dave")
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestRunResponseString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", (&RunResponse{Content: "hello"}).String())
	assert.Contains(t, (&RunResponse{Model: "m", SessionID: "s"}).String(), "session_id=s")

	var nilResp *RunResponse
	assert.Empty(t, nilResp.String())
}
