package chat

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ashureev/memchat/internal/agent"
	"github.com/ashureev/memchat/internal/domain"
	"github.com/ashureev/memchat/internal/identity"
)

// Channels reported in conversation logs.
const (
	ChannelWeb       = "chat_web"
	ChannelWebSocket = "chat_ws"
	ChannelTerminal  = "chat_terminal"
)

// IdentityResolver names the user who was chatting most recently.
type IdentityResolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Controller moves a State through initialization and chat turns.
type Controller struct {
	resolver IdentityResolver
	loader   *Loader
	factory  agent.Factory
	greeter  *Greeter
	convLog  agent.ConversationLogger
	logger   *slog.Logger
}

// NewController creates a Controller. convLog may be nil.
func NewController(resolver IdentityResolver, sessions SessionLister, factory agent.Factory, convLog agent.ConversationLogger, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if convLog == nil {
		convLog = agent.NoopConversationLogger{}
	}
	return &Controller{
		resolver: resolver,
		loader:   NewLoader(sessions),
		factory:  factory,
		greeter:  NewGreeter(logger),
		convLog:  convLog,
		logger:   logger,
	}
}

// Initialize greets the conversation exactly once. A returning user gets
// their agent rebuilt on their latest session; anyone else is asked for
// their name. Store failures are logged and treated as a new user.
func (c *Controller) Initialize(ctx context.Context, s *State) {
	if s.Initialized {
		return
	}

	userID := ""
	if c.resolver != nil {
		var err error
		userID, err = c.resolver.Resolve(ctx)
		if err != nil {
			c.logger.Warn("Could not resolve returning user", "error", err)
			userID = ""
		}
	}

	if userID != "" {
		s.UserID = userID
		s.Phase = PhaseReadyReturningUser

		sessionID, err := c.loader.LoadLatest(ctx, userID)
		if err != nil {
			c.logger.Warn("Could not load latest session, starting a new one", "user_id", userID, "error", err)
			sessionID = ""
		}

		h, err := c.buildAgent(ctx, userID, sessionID)
		if err != nil {
			c.logger.Error("Failed to initialize agent for returning user", "user_id", userID, "error", err)
		} else {
			s.Agent = h
			s.SessionID = h.SessionID()
		}

		s.appendMessage(domain.RoleAssistant, c.greeter.Generate(ctx, userID, s.Agent))
		c.logger.Info("Returning user recognized", "user_id", userID, "session_id", s.SessionID)
	} else {
		s.Phase = PhaseReadyNewUser
		s.appendMessage(domain.RoleAssistant, NewUserGreeting)
	}

	s.Initialized = true
	s.Phase = PhaseAwaitingInput
}

// Submit handles one user message and returns the assistant reply. Exactly
// two messages are appended to s: the user's input and the reply.
func (c *Controller) Submit(ctx context.Context, s *State, input string) domain.ChatMessage {
	if !s.Initialized {
		c.Initialize(ctx, s)
	}
	s.Phase = PhaseProcessing
	defer func() { s.Phase = PhaseAwaitingInput }()

	unnamed := false
	if s.UserID == "" {
		unnamed = !c.introduce(ctx, s, input)
	}

	s.appendMessage(domain.RoleUser, input)
	c.logEvent(ctx, s, "inbound", "chat_user_message", input, nil)

	var reply string
	var meta map[string]any
	if unnamed {
		reply, meta = NewUserGreeting, map[string]any{"reason": "no_name"}
	} else {
		reply, meta = c.reply(ctx, s, input)
	}
	msg := s.appendMessage(domain.RoleAssistant, reply)
	c.logEvent(ctx, s, "outbound", "chat_assistant_message", reply, meta)
	return msg
}

// introduce binds a new user to an agent using the name found in input. It
// reports whether a name was found; the user stays unnamed when the agent
// cannot be built so the next message tries again.
func (c *Controller) introduce(ctx context.Context, s *State, input string) bool {
	name, ok := identity.ExtractName(input)
	if !ok {
		return false
	}
	h, err := c.buildAgent(ctx, name, "")
	if err != nil {
		c.logger.Error("Failed to initialize agent for new user", "user_id", name, "error", err)
		return true
	}
	s.UserID = name
	s.Agent = h
	s.SessionID = h.SessionID()
	c.logger.Info("New user introduced", "user_id", name, "session_id", s.SessionID)
	return true
}

func (c *Controller) reply(ctx context.Context, s *State, input string) (string, map[string]any) {
	if s.Agent == nil {
		return InitFailureReply, map[string]any{"reason": "no_agent"}
	}

	started := time.Now()
	resp, err := s.Agent.Run(ctx, input, s.UserID)
	if err != nil {
		c.logger.Error("Agent run failed", "user_id", s.UserID, "session_id", s.SessionID, "error", err)
		return ErrorReply(err), map[string]any{"error": err.Error()}
	}
	if resp == nil {
		return InitFailureReply, map[string]any{"reason": "empty_response"}
	}

	content := resp.Content
	if content == "" {
		content = resp.String()
	}
	return content, map[string]any{
		"model":         resp.Model,
		"input_tokens":  resp.InputTokens,
		"output_tokens": resp.OutputTokens,
		"duration_ms":   time.Since(started).Milliseconds(),
	}
}

func (c *Controller) buildAgent(ctx context.Context, userID, sessionID string) (agent.Handle, error) {
	if c.factory == nil {
		return nil, errors.New("no agent factory configured")
	}
	return c.factory.New(ctx, userID, sessionID)
}

func (c *Controller) logEvent(ctx context.Context, s *State, direction, eventType, content string, meta map[string]any) {
	c.convLog.Log(agent.ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     s.UserID,
		SessionID:  s.SessionID,
		Channel:    ChannelFromContext(ctx),
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Meta:       meta,
	})
}

type channelKey struct{}

// WithChannel tags ctx with the front end a message arrived through.
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

// ChannelFromContext returns the channel set by WithChannel, defaulting to
// ChannelWeb.
func ChannelFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(channelKey{}).(string); ok && v != "" {
		return v
	}
	return ChannelWeb
}
