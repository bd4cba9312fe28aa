package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ashureev/memchat/internal/domain"
	"github.com/ashureev/memchat/internal/llm"
)

const memoryExtractionPrompt = `You maintain long-term memories about a user of a chat assistant.
Read the latest exchange and list any new, durable facts about the user worth remembering in future conversations: their name, preferences, background, goals, or ongoing projects.
Do not repeat facts that are already known. Write each memory as a short third-person sentence.
Reply with JSON of the form {"memories": ["..."]}. Use an empty list when there is nothing new.`

const summaryPrompt = `You keep a running summary of a conversation between a user and an assistant.
Update the existing summary with the latest exchange. Keep it under 120 words, plain text, no preamble.`

// extractionResult is the structured output of a memory extraction call.
type extractionResult struct {
	Memories []string `json:"memories"`
}

// extractMemories asks the model for new facts about the user and stores
// them. Failures are logged and never reach the caller.
func (a *Agent) extractMemories(ctx context.Context, userID, userMsg, assistantResp string, known []*domain.MemoryRecord) {
	if userID == "" || strings.TrimSpace(userMsg) == "" {
		return
	}

	var prompt strings.Builder
	if domain.IsRealIdentity(userID) {
		fmt.Fprintf(&prompt, "The user's id is %q.\n", userID)
	}
	if len(known) > 0 {
		prompt.WriteString("Already known:\n")
		for _, m := range known {
			prompt.WriteString("- ")
			prompt.WriteString(m.Memory)
			prompt.WriteString("\n")
		}
	}
	fmt.Fprintf(&prompt, "\nUser: %s\nAssistant: %s\n", userMsg, assistantResp)

	resp, err := a.client.Chat(ctx, &llm.Request{
		Model:    a.opts.Model,
		System:   memoryExtractionPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt.String()}},
		JSON:     true,
	})
	if err != nil {
		a.logger.Warn("Memory extraction call failed", "error", err)
		return
	}

	result, err := parseExtraction(resp.Content)
	if err != nil {
		a.logger.Warn("Memory extraction returned invalid JSON", "error", err)
		return
	}

	seen := make(map[string]bool, len(known))
	for _, m := range known {
		seen[normalizeMemory(m.Memory)] = true
	}

	stored := 0
	for _, text := range result.Memories {
		text = strings.TrimSpace(text)
		key := normalizeMemory(text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		now := a.now()
		if err := a.repo.AddMemory(ctx, &domain.MemoryRecord{
			ID:        uuid.NewString(),
			UserID:    userID,
			Memory:    text,
			CreatedAt: now,
			UpdatedAt: now,
		}); err != nil {
			a.logger.Warn("Failed to store memory", "error", err)
			continue
		}
		stored++
	}

	if stored > 0 {
		a.logger.Info("Stored user memories", "count", stored, "total_extracted", len(result.Memories))
	}
}

// refreshSummary folds the latest exchange into the session summary.
func (a *Agent) refreshSummary(ctx context.Context, userMsg, assistantResp string) {
	previous := ""
	session, err := a.repo.GetSession(ctx, a.opts.SessionID)
	if err != nil {
		a.logger.Warn("Failed to load session for summary", "error", err)
		return
	}
	if session != nil {
		previous = session.Summary
	}

	content := fmt.Sprintf("Existing summary:\n%s\n\nUser: %s\nAssistant: %s", previous, userMsg, assistantResp)
	resp, err := a.client.Chat(ctx, &llm.Request{
		Model:    a.opts.Model,
		System:   summaryPrompt,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: content}},
	})
	if err != nil {
		a.logger.Warn("Session summary call failed", "error", err)
		return
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return
	}
	if err := a.repo.UpdateSessionSummary(ctx, a.opts.SessionID, summary); err != nil {
		a.logger.Warn("Failed to store session summary", "error", err)
	}
}

func parseExtraction(raw string) (*extractionResult, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var result extractionResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &result); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}
	return &result, nil
}

func normalizeMemory(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
