// Package llm provides hosted language-model clients behind one interface.
package llm

import (
	"context"
	"fmt"

	"github.com/ashureev/memchat/internal/config"
)

// Client is the interface that all model providers implement.
type Client interface {
	// Chat sends a single completion request and returns the full response.
	Chat(ctx context.Context, req *Request) (*Response, error)

	// Provider returns the provider identifier, e.g. "openai".
	Provider() string
}

// New returns the client selected by cfg.Provider.
func New(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.MaxTokens)
	case config.ProviderAnthropic:
		return NewAnthropic(cfg.AnthropicAPIKey, "", cfg.MaxTokens)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
