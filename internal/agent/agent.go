package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/memchat/internal/domain"
	"github.com/ashureev/memchat/internal/llm"
	"github.com/ashureev/memchat/internal/store"
)

const markdownInstruction = "Use markdown to format your answers."

// Agent is the store-backed Handle implementation.
type Agent struct {
	opts   Options
	client llm.Client
	repo   store.Repository
	logger *slog.Logger
	now    func() time.Time
}

var _ Handle = (*Agent)(nil)

// New creates an agent for an existing session. Use a Factory to have the
// session row created.
func New(opts Options, client llm.Client, repo store.Repository, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Description == "" {
		opts.Description = DefaultDescription
	}
	if opts.HistoryDepth < 0 {
		opts.HistoryDepth = 0
	}
	return &Agent{
		opts:   opts,
		client: client,
		repo:   repo,
		logger: logger.With("user_id", opts.UserID, "session_id", opts.SessionID),
		now:    time.Now,
	}
}

// SessionID returns the session the agent writes to.
func (a *Agent) SessionID() string {
	return a.opts.SessionID
}

// UserMemories lists the memories stored for userID, oldest first.
func (a *Agent) UserMemories(ctx context.Context, userID string) ([]*domain.MemoryRecord, error) {
	if userID == "" {
		userID = a.opts.UserID
	}
	memories, err := a.repo.UserMemories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load memories for %s: %w", userID, err)
	}
	return memories, nil
}

// Run answers message, records the exchange and updates memories and the
// session summary when those features are enabled.
func (a *Agent) Run(ctx context.Context, message, userID string) (*RunResponse, error) {
	if userID == "" {
		userID = a.opts.UserID
	}

	// Stored memories are referenced even when no new ones are extracted.
	var memories []*domain.MemoryRecord
	if a.opts.EnableUserMemories || a.opts.AddMemoryReferences {
		var err error
		memories, err = a.repo.UserMemories(ctx, userID)
		if err != nil {
			a.logger.Warn("Failed to load user memories", "error", err)
		}
	}

	req := &llm.Request{
		Model:    a.opts.Model,
		System:   a.systemPrompt(ctx, userID, memories),
		Messages: append(a.history(ctx), llm.Message{Role: llm.RoleUser, Content: message}),
	}

	resp, err := a.client.Chat(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("agent run: %w", err)
	}

	if err := a.repo.AppendRun(ctx, &domain.RunRecord{
		SessionID:        a.opts.SessionID,
		UserMessage:      message,
		AssistantMessage: resp.Content,
		CreatedAt:        a.now(),
	}); err != nil {
		a.logger.Warn("Failed to persist agent run", "error", err)
	}

	if a.opts.EnableUserMemories {
		a.extractMemories(ctx, userID, message, resp.Content, memories)
	}
	if a.opts.EnableSessionSummaries {
		a.refreshSummary(ctx, message, resp.Content)
	}

	return &RunResponse{
		Content:      resp.Content,
		Model:        resp.Model,
		SessionID:    a.opts.SessionID,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}, nil
}

func (a *Agent) systemPrompt(ctx context.Context, userID string, memories []*domain.MemoryRecord) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.opts.Description))

	if a.opts.Markdown {
		b.WriteString("\n\n")
		b.WriteString(markdownInstruction)
	}

	if domain.IsRealIdentity(userID) {
		fmt.Fprintf(&b, "\n\nYou are talking to the user %q.", userID)
	}

	if a.opts.AddMemoryReferences && len(memories) > 0 {
		b.WriteString("\n\nYou have access to memories from previous interactions with the user that you can use:\n<memories_from_previous_interactions>\n")
		for _, m := range memories {
			b.WriteString("- ")
			b.WriteString(m.Memory)
			b.WriteString("\n")
		}
		b.WriteString("</memories_from_previous_interactions>")
	}

	if a.opts.EnableSessionSummaries {
		session, err := a.repo.GetSession(ctx, a.opts.SessionID)
		if err != nil {
			a.logger.Warn("Failed to load session summary", "error", err)
		} else if session != nil && session.Summary != "" {
			b.WriteString("\n\nHere is a brief summary of your previous interactions:\n<summary_of_previous_interactions>\n")
			b.WriteString(session.Summary)
			b.WriteString("\n</summary_of_previous_interactions>")
		}
	}

	return b.String()
}

func (a *Agent) history(ctx context.Context) []llm.Message {
	if !a.opts.AddHistoryToMessages || a.opts.HistoryDepth == 0 {
		return nil
	}
	runs, err := a.repo.RecentRuns(ctx, a.opts.SessionID, a.opts.HistoryDepth)
	if err != nil {
		a.logger.Warn("Failed to load session history", "error", err)
		return nil
	}
	messages := make([]llm.Message, 0, len(runs)*2+1)
	for _, run := range runs {
		messages = append(messages,
			llm.Message{Role: llm.RoleUser, Content: run.UserMessage},
			llm.Message{Role: llm.RoleAssistant, Content: run.AssistantMessage},
		)
	}
	return messages
}
