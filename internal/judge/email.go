package judge

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
)

// maxBodySize caps how much of an email body is sent to the model.
const maxBodySize = 32 * 1024

// Email is the part of a message the judge looks at.
type Email struct {
	Subject string
	From    string
	Body    string
}

// Prompt renders the email for the model.
func (e Email) Prompt() string {
	var b strings.Builder
	if e.From != "" {
		fmt.Fprintf(&b, "From: %s\n", e.From)
	}
	if e.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", e.Subject)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(e.Body)
	return b.String()
}

// ParseEmail extracts subject, sender and plain-text body from raw. Input
// that does not start with RFC 5322 headers is used verbatim as the body.
func ParseEmail(raw string) Email {
	raw = dedent(raw)
	if parsed, err := parseMessage(raw); err == nil && (parsed.Subject != "" || parsed.From != "") {
		if parsed.Body == "" {
			parsed.Body = bodyAfterHeaders(raw)
		}
		return parsed
	}
	return Email{Body: truncate(strings.TrimSpace(raw))}
}

// parseMessage reads raw with go-message. Unknown charsets are tolerated.
func parseMessage(raw string) (Email, error) {
	mr, err := mail.CreateReader(strings.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return Email{}, fmt.Errorf("create mail reader: %w", err)
	}
	if mr == nil {
		return Email{}, errors.New("create mail reader returned nil")
	}
	defer mr.Close()

	var e Email
	if subject, err := mr.Header.Subject(); err == nil {
		e.Subject = strings.TrimSpace(subject)
	}
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		e.From = from[0].String()
	} else {
		e.From = strings.TrimSpace(mr.Header.Get("From"))
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return e, fmt.Errorf("next part: %w", err)
		}
		if part == nil {
			continue
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		if contentType != "" && contentType != "text/plain" {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(part.Body, maxBodySize+1))
		if err != nil {
			continue
		}
		e.Body = truncate(strings.TrimSpace(string(body)))
		break
	}

	return e, nil
}

// bodyAfterHeaders returns everything after the first blank line.
func bodyAfterHeaders(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	if idx := strings.Index(raw, "\n\n"); idx >= 0 {
		return truncate(strings.TrimSpace(raw[idx+2:]))
	}
	return ""
}

// truncate cuts s to at most maxBodySize bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxBodySize {
		return s
	}
	cut := maxBodySize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n\n[truncated]"
}

// dedent removes the common leading indentation of non-blank lines, so
// pasted or indented literal emails still parse as headers.
func dedent(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}

	prefix := ""
	first := true
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
		if first {
			prefix, first = indent, false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			lines[i] = ""
			continue
		}
		lines[i] = strings.TrimPrefix(line, prefix)
	}
	return strings.Join(lines, "\n")
}
