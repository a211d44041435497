package orchestrator

import (
	"fmt"
	"strings"
)

// Refusal openings from chat models. Only the start of a chapter is checked,
// since characters may say similar things in dialogue.
var refusalPatterns = []string{
	"i'm sorry, but i can't",
	"i cannot help with that",
	"i can't assist with that",
	"i'm unable to help with that",
	"i apologize, but i cannot",
	"i'm not able to",
	"i cannot write",
	"i cannot create",
	"i'm sorry, i cannot",
	"as an ai",
	"desculpe, mas não posso",
}

const refusalWindow = 200

// rejectChapter reports whether a generated chapter is a refusal instead of prose
func rejectChapter(body string) (string, bool) {
	head := strings.ToLower(strings.TrimSpace(body))
	if len(head) > refusalWindow {
		head = head[:refusalWindow]
	}
	for _, pattern := range refusalPatterns {
		if strings.Contains(head, pattern) {
			return "refusal: " + pattern, true
		}
	}
	return "", false
}

// isIncompleteOutput checks whether a chapter appears cut off mid-sentence
func isIncompleteOutput(text string) (bool, string) {
	trimmed := strings.TrimRight(strings.TrimSpace(text), "*_")
	if trimmed == "" {
		return true, "empty output"
	}

	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?', '"', '\'', ')':
		return false, ""
	}
	if strings.HasSuffix(trimmed, "…") || strings.HasSuffix(trimmed, "”") || strings.HasSuffix(trimmed, "»") {
		return false, ""
	}

	words := strings.Fields(trimmed)
	lastWord := strings.TrimRight(words[len(words)-1], ",;:")
	return true, fmt.Sprintf("no terminal punctuation, ends with %q", lastWord)
}
