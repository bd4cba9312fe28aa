package llm

import "errors"

// Message roles understood by every provider.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrEmptyResponse is returned when the provider answered without any text.
var ErrEmptyResponse = errors.New("model returned no content")

// Message is one turn of conversation sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a provider-neutral completion request.
type Request struct {
	Model    string
	System   string
	Messages []Message
	// MaxTokens overrides the client default when positive.
	MaxTokens int
	// JSON asks the provider for a single JSON object as output.
	JSON bool
}

// Response is the provider-neutral completion result.
type Response struct {
	Model        string
	Content      string
	InputTokens  int
	OutputTokens int
}
