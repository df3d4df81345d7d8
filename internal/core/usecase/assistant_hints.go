package usecase

import (
	"regexp"
	"strings"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

var (
	numberedItem = regexp.MustCompile(`^\d{1,2}[.)]\s+`)
	bulletItem   = regexp.MustCompile(`^[-*•]\s+`)
	warningWords = []string{"warning", "important", "required", "must", "deadline"}
)

// ExtractHints scrapes warnings and next steps out of free-form reply text.
// It is a heuristic; an empty result says nothing about the reply.
func ExtractHints(text string) domain.AssistantHints {
	var hints domain.AssistantHints
	seen := make(map[string]struct{})

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		listItem := false
		if loc := numberedItem.FindStringIndex(line); loc != nil {
			line = line[loc[1]:]
			listItem = true
		} else if loc := bulletItem.FindStringIndex(line); loc != nil {
			line = line[loc[1]:]
			listItem = true
		}
		line = strings.TrimSpace(strings.Trim(line, "*_"))
		if line == "" {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}

		lower := strings.ToLower(line)
		switch {
		case containsAny(lower, warningWords):
			hints.Warnings = append(hints.Warnings, line)
			seen[line] = struct{}{}
		case listItem:
			hints.NextSteps = append(hints.NextSteps, line)
			seen[line] = struct{}{}
		}
	}
	return hints
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
