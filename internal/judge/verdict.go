package judge

import (
	"regexp"
	"strings"
)

var (
	listNumber   = regexp.MustCompile(`^\d+[.)]\s*`)
	labelWord    = regexp.MustCompile(`\b(IMPORTANT|JUNK)\b`)
	sectionLabel = regexp.MustCompile(`(?i)\b(important|junk)\b`)
)

type section int

const (
	sectionNone section = iota
	sectionClassification
	sectionReasoning
	sectionSummary
)

// ParseVerdict reads the model's markdown answer. The label comes from the
// classification section. Only an answer without one is searched further,
// and then only outside the reasoning and summary sections, for a label in
// capitals.
func ParseVerdict(md string) *Verdict {
	v := &Verdict{Label: LabelUnknown, Markdown: md}

	var reasoning, summary, loose []string
	var classification string
	hasClassification := false
	current := sectionNone

	for _, line := range strings.Split(md, "\n") {
		clean := cleanLine(line)
		lower := strings.ToLower(clean)
		header := true

		switch {
		case strings.HasPrefix(lower, "classification"):
			current = sectionClassification
			hasClassification = true
			classification += " " + afterColon(clean)
			continue
		case strings.HasPrefix(lower, "reasoning"):
			current = sectionReasoning
			clean = afterColon(clean)
		case strings.HasPrefix(lower, "summary"):
			current = sectionSummary
			clean = afterColon(clean)
		default:
			header = false
		}

		if clean == "" {
			continue
		}
		switch current {
		case sectionNone:
			loose = append(loose, clean)
		case sectionClassification:
			classification += " " + clean
		case sectionReasoning:
			reasoning = append(reasoning, clean)
		case sectionSummary:
			if header {
				summary = append(summary, clean)
			} else {
				summary = append(summary, strings.TrimSpace(line))
			}
		}
	}

	if hasClassification {
		v.Label = findLabel(sectionLabel, classification)
	} else {
		for _, line := range loose {
			if label := findLabel(labelWord, line); label != LabelUnknown {
				v.Label = label
				break
			}
		}
	}

	v.Reasoning = strings.Join(reasoning, " ")
	v.Summary = strings.TrimSpace(strings.Join(summary, "\n"))
	return v
}

func findLabel(re *regexp.Regexp, s string) Label {
	switch strings.ToUpper(re.FindString(s)) {
	case "IMPORTANT":
		return LabelImportant
	case "JUNK":
		return LabelJunk
	default:
		return LabelUnknown
	}
}

func cleanLine(line string) string {
	s := strings.TrimSpace(line)
	s = strings.TrimLeft(s, "#> ")
	s = listNumber.ReplaceAllString(s, "")
	s = strings.TrimPrefix(s, "- ")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.TrimSpace(s)
}

func afterColon(s string) string {
	if idx := strings.Index(s, ":"); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return ""
}
