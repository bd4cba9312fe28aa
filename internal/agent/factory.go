package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/memchat/internal/config"
	"github.com/ashureev/memchat/internal/domain"
	"github.com/ashureev/memchat/internal/llm"
	"github.com/ashureev/memchat/internal/store"
)

// StoreFactory builds agents that share one model client and one repository.
type StoreFactory struct {
	cfg    config.AgentConfig
	model  string
	client llm.Client
	repo   store.Repository
	logger *slog.Logger
}

var _ Factory = (*StoreFactory)(nil)

// NewFactory creates a StoreFactory.
func NewFactory(cfg config.AgentConfig, model string, client llm.Client, repo store.Repository, logger *slog.Logger) *StoreFactory {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreFactory{cfg: cfg, model: model, client: client, repo: repo, logger: logger}
}

// New returns an agent for userID. When sessionID is empty, or names a
// session that no longer exists, a session record is created first.
func (f *StoreFactory) New(ctx context.Context, userID, sessionID string) (Handle, error) {
	if userID == "" {
		return nil, ErrNoUser
	}
	if f.client == nil {
		return nil, fmt.Errorf("agent: no model client configured")
	}

	if sessionID != "" {
		existing, err := f.repo.GetSession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", sessionID, err)
		}
		if existing == nil {
			if err := f.createSession(ctx, userID, sessionID); err != nil {
				return nil, err
			}
		}
	} else {
		sessionID = uuid.NewString()
		if err := f.createSession(ctx, userID, sessionID); err != nil {
			return nil, err
		}
	}

	f.logger.Info("Agent ready", "user_id", userID, "session_id", sessionID)

	return New(Options{
		Model:                  f.model,
		UserID:                 userID,
		SessionID:              sessionID,
		EnableUserMemories:     f.cfg.EnableUserMemories,
		EnableSessionSummaries: f.cfg.EnableSessionSummaries,
		AddMemoryReferences:    f.cfg.AddMemoryReferences,
		AddHistoryToMessages:   f.cfg.AddHistoryToMessages,
		HistoryDepth:           f.cfg.HistoryDepth,
		Markdown:               f.cfg.Markdown,
		Description:            DefaultDescription,
	}, f.client, f.repo, f.logger), nil
}

func (f *StoreFactory) createSession(ctx context.Context, userID, sessionID string) error {
	now := time.Now()
	if err := f.repo.CreateSession(ctx, &domain.SessionRecord{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("create session for %s: %w", userID, err)
	}
	return nil
}
