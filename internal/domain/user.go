// Package domain contains core domain types for the memchat application.
package domain

// PlaceholderUserID is the reserved identity used when no real name is known.
// It is never greeted by name.
const PlaceholderUserID = "User"

// Role identifies the author of a chat message.
type Role string

const (
	// RoleUser marks messages typed by the person chatting.
	RoleUser Role = "user"
	// RoleAssistant marks messages produced by the assistant.
	RoleAssistant Role = "assistant"
)

// ChatMessage is a single entry in the visible conversation.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// IsRealIdentity reports whether userID names an actual person.
func IsRealIdentity(userID string) bool {
	return userID != "" && userID != PlaceholderUserID
}
