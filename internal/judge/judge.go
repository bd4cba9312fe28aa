// Package judge classifies emails as important or junk for computer science
// students.
package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/memchat/internal/llm"
	"github.com/ashureev/memchat/internal/markdown"
)

// ErrEmptyEmail is returned when there is nothing to classify.
var ErrEmptyEmail = errors.New("email is empty")

// Label is the judge's verdict.
type Label string

const (
	LabelImportant Label = "IMPORTANT"
	LabelJunk      Label = "JUNK"
	LabelUnknown   Label = "UNKNOWN"
)

// Instructions is the system prompt given to the model.
const Instructions = `You are an intelligent email judge specifically designed for computer science students! 📧⚖️

Your primary role is to analyze email content and determine if it's IMPORTANT or JUNK for a CS student.

**Classification Guidelines:**

IMPORTANT emails include:
- Academic announcements (grades, assignments, deadlines, course updates)
- Career opportunities (internships, job postings, career fairs)
- Technical conferences, workshops, or seminars
- Research opportunities or lab positions
- Scholarship and funding opportunities
- University administrative messages (registration, tuition, housing)
- Tech industry news or opportunities from legitimate sources
- Professional networking requests
- Project collaboration invitations
- Technical learning resources or course materials

JUNK emails include:
- Generic promotional content
- Unrelated product advertisements
- Spam or phishing attempts
- Non-academic newsletters you didn't subscribe to
- Social media notifications (unless academic/professional)
- Generic marketing emails
- Irrelevant services or products

**Response Format:**
1. **Classification:** Start with either "📌 IMPORTANT" or "🗑️ JUNK"
2. **Reasoning:** Brief explanation (1-2 sentences) of why you classified it this way
3. **Summary & Action Items:** (ONLY for IMPORTANT emails) Provide a concise summary with specific action items needed

Keep your analysis sharp, concise, and student-focused!

Use markdown to format your answers.`

// Verdict is the structured result of classifying one email.
type Verdict struct {
	Label     Label  `json:"label"`
	Reasoning string `json:"reasoning"`
	Summary   string `json:"summary,omitempty"`
	Markdown  string `json:"markdown"`
	HTML      string `json:"html"`
}

// Judge classifies emails with a language model. It keeps no state between
// calls.
type Judge struct {
	client llm.Client
	model  string
	logger *slog.Logger
}

// New creates a Judge.
func New(client llm.Client, model string, logger *slog.Logger) *Judge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Judge{client: client, model: model, logger: logger}
}

// Classify asks the model for a verdict on raw, which may be plain text or
// a full RFC 5322 message.
func (j *Judge) Classify(ctx context.Context, raw string) (*Verdict, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyEmail
	}
	email := ParseEmail(raw)

	resp, err := j.client.Chat(ctx, &llm.Request{
		Model:    j.model,
		System:   Instructions,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: email.Prompt()}},
	})
	if err != nil {
		return nil, fmt.Errorf("classify email: %w", err)
	}

	verdict := ParseVerdict(resp.Content)
	html, err := markdown.ToHTML(resp.Content)
	if err != nil {
		j.logger.Warn("Failed to render verdict", "error", err)
	} else {
		verdict.HTML = html
	}

	j.logger.Info("Email classified", "label", verdict.Label, "subject", email.Subject)
	return verdict, nil
}
