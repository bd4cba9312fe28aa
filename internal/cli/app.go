package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ashureev/memchat/internal/agent"
	"github.com/ashureev/memchat/internal/chat"
	"github.com/ashureev/memchat/internal/config"
	"github.com/ashureev/memchat/internal/identity"
	"github.com/ashureev/memchat/internal/judge"
	"github.com/ashureev/memchat/internal/llm"
	"github.com/ashureev/memchat/internal/store"
)

// app holds the components shared by every command.
type app struct {
	cfg     *config.Config
	repo    store.Repository
	client  llm.Client
	convLog agent.ConversationLogger
	ctrl    *chat.Controller
	judge   *judge.Judge
	logger  *slog.Logger
}

// newApp opens the database and wires the chat controller and email judge.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := llm.New(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("init model client: %w", err)
	}

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("database health check: %w", err)
	}
	logger.Info("Database connected", "path", cfg.DBPath)

	convLog, err := agent.NewConversationLogger(cfg.ConversationLog, logger)
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("init conversation logger: %w", err)
	}

	factory := agent.NewFactory(cfg.Agent, cfg.LLM.Model, client, repo, logger)
	resolver := identity.NewResolver(repo, logger)

	return &app{
		cfg:     cfg,
		repo:    repo,
		client:  client,
		convLog: convLog,
		ctrl:    chat.NewController(resolver, repo, factory, convLog, logger),
		judge:   judge.New(client, cfg.LLM.Model, logger),
		logger:  logger,
	}, nil
}

// Close flushes the conversation log and closes the database.
func (a *app) Close() error {
	return errors.Join(a.convLog.Close(), a.repo.Close())
}
