package api

import (
	"github.com/ashureev/memchat/internal/domain"
	"github.com/ashureev/memchat/internal/markdown"
)

// MessageView is a chat message as sent to the browser.
type MessageView struct {
	Role    domain.Role `json:"role"`
	Content string      `json:"content"`
	HTML    string      `json:"html,omitempty"`
}

// RenderMessages converts msgs for display, rendering assistant markdown.
func RenderMessages(msgs []domain.ChatMessage) []MessageView {
	out := make([]MessageView, 0, len(msgs))
	for _, m := range msgs {
		view := MessageView{Role: m.Role, Content: m.Content}
		if m.Role == domain.RoleAssistant {
			if html, err := markdown.ToHTML(m.Content); err == nil {
				view.HTML = html
			}
		}
		out = append(out, view)
	}
	return out
}
