package domain

import (
	"time"
)

// SessionRecord is one conversation thread belonging to a user.
type SessionRecord struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Summary   string    `json:"summary,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunRecord stores one completed exchange within a session.
type RunRecord struct {
	SessionID        string    `json:"session_id"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	CreatedAt        time.Time `json:"created_at"`
}

// MemoryRecord is a fact the assistant has retained about a user.
type MemoryRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Memory    string    `json:"memory"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Latest returns the session with the greatest creation time, or nil when
// sessions is empty. Ties keep the earlier element.
func Latest(sessions []*SessionRecord) *SessionRecord {
	var latest *SessionRecord
	for _, s := range sessions {
		if s == nil {
			continue
		}
		if latest == nil || s.CreatedAt.After(latest.CreatedAt) {
			latest = s
		}
	}
	return latest
}
