package util

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var jsonFenceRegex = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")

// ExtractJSON pulls the first JSON array or object out of a model response.
// Markdown fences and surrounding chatter are dropped; a truncated value is
// closed on a best-effort basis so the caller can still attempt to decode it.
func ExtractJSON(s string) string {
	if m := jsonFenceRegex.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}

	open, closer := rune(s[start]), ']'
	if open == '{' {
		closer = '}'
	}
	if end := findMatchingBracket(s, start, open, closer); end != -1 {
		return s[start : end+1]
	}
	return closeTruncated(s[start:])
}

// closeTruncated appends the closers a cut-off response is missing
func closeTruncated(s string) string {
	var stack []byte
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '[':
			stack = append(stack, ']')
		case ch == '{':
			stack = append(stack, '}')
		case ch == ']' || ch == '}':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	out := strings.TrimRight(b.String(), " \n\t,:")
	b.Reset()
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}

// findMatchingBracket returns the index of the bracket closing the one at startPos, or -1
func findMatchingBracket(s string, startPos int, openChar, closeChar rune) int {
	depth := 0
	inString, escaped := false, false

	for i := startPos; i < len(s); i++ {
		ch := rune(s[i])
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// SanitizeJSON escapes raw newlines that models leave inside string values
func SanitizeJSON(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString, escaped := false, false

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString && (ch == '\n' || ch == '\r'):
			b.WriteString("\\n")
			if ch == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// DecodeJSON extracts, sanitizes and unmarshals a model response into v
func DecodeJSON(raw string, v any) error {
	cleaned := SanitizeJSON(ExtractJSON(StripThinkTags(raw)))
	if cleaned == "" {
		return fmt.Errorf("empty response")
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("failed to decode JSON: %w (content: %s)", err, TruncateString(cleaned, 200))
	}
	return nil
}
