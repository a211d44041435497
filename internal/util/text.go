package util

import (
	"regexp"
	"strings"
)

var (
	thinkTagRegex        = regexp.MustCompile(`(?i)<think(?:ing)?>([\s\S]*?)</think(?:ing)?>`)
	chineseThinkTagRegex = regexp.MustCompile(`<思考>([\s\S]*?)</思考>`)
	// Unterminated think block at the start of a cut-off response
	openThinkRegex = regexp.MustCompile(`(?i)^\s*<think(?:ing)?>[\s\S]*$`)
)

// ContainsThinkTags reports whether the response carries a reasoning block
func ContainsThinkTags(response string) bool {
	return thinkTagRegex.MatchString(response) || chineseThinkTagRegex.MatchString(response)
}

// StripThinkTags removes reasoning blocks and returns the trimmed answer
func StripThinkTags(response string) string {
	out := thinkTagRegex.ReplaceAllString(response, "")
	out = chineseThinkTagRegex.ReplaceAllString(out, "")
	if openThinkRegex.MatchString(out) {
		return ""
	}
	return strings.TrimSpace(out)
}

// Leading phrases models use to announce the text instead of writing it
var preamblePrefixes = []string{
	"here is",
	"here's",
	"sure,",
	"sure!",
	"certainly",
	"aqui está",
	"claro",
}

// Trailing chatter that follows the story text
var trailingMeta = []string{
	"i hope you enjoy",
	"let me know if you",
	"would you like me to",
	"espero que goste",
	"se quiser, posso",
}

// CleanMetaFromLLMResponse drops an announcing first line and trailing offers
// from a generated passage while keeping the passage itself.
func CleanMetaFromLLMResponse(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return trimmed
	}

	if first, rest, ok := strings.Cut(trimmed, "\n"); ok && strings.HasSuffix(strings.TrimSpace(first), ":") {
		lower := strings.ToLower(strings.TrimSpace(first))
		for _, p := range preamblePrefixes {
			if strings.HasPrefix(lower, p) {
				trimmed = strings.TrimSpace(rest)
				break
			}
		}
	}

	lower := strings.ToLower(trimmed)
	cut := len(trimmed)
	for _, phrase := range trailingMeta {
		if idx := strings.LastIndex(lower, phrase); idx > 0 && idx < cut {
			cut = idx
		}
	}
	if cut < len(trimmed) {
		if result := strings.TrimSpace(trimmed[:cut]); result != "" {
			return result
		}
	}
	return trimmed
}

// CleanGenerated is the standard cleanup for free-text stage output
func CleanGenerated(raw string) string {
	return CleanMetaFromLLMResponse(StripThinkTags(raw))
}
