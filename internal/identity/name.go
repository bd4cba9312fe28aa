package identity

import "strings"

// nameMarkers are checked in priority order. The first marker present in the
// text wins even when a later one appears earlier in the sentence.
var nameMarkers = []string{"name is", "i'm", "i am"}

const namePunctuation = ".,!?"

// ExtractName guesses a user's name from a self-introduction.
//
// The markers "name is", "i'm" and "i am" are tried in that order, matching
// case-insensitively; the token following the first marker found is the name.
// Without a usable marker the first word of the text is taken. The returned
// token keeps its original casing with surrounding punctuation stripped.
func ExtractName(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}

	lowered := asciiLower(text)
	for _, marker := range nameMarkers {
		idx := strings.Index(lowered, marker)
		if idx < 0 {
			continue
		}
		if name := firstToken(text[idx+len(marker):]); name != "" {
			return name, true
		}
	}

	if name := firstToken(text); name != "" {
		return name, true
	}
	return "", false
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], namePunctuation)
}

// asciiLower lowers A-Z only so byte offsets in the result line up with the
// input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
