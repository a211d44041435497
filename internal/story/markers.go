package story

import (
	"strings"

	"github.com/lamim/storyforge/pkg/models"
)

// ChapterMarker starts every chapter heading line in a draft
const ChapterMarker = "## "

// CountMarkers counts lines that start with the chapter marker
func CountMarkers(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, ChapterMarker) {
			n++
		}
	}
	return n
}

// Section is one chapter of a draft: its heading text and the prose below it
type Section struct {
	Title string
	Body  string
}

// SplitSections splits a draft on chapter headings. Text before the first
// heading is returned as the preamble.
func SplitSections(text string) (preamble string, sections []Section) {
	var pre []string
	var cur *Section
	var body []string

	flush := func() {
		if cur != nil {
			cur.Body = strings.TrimSpace(strings.Join(body, "\n"))
			sections = append(sections, *cur)
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, ChapterMarker) {
			flush()
			cur = &Section{Title: strings.TrimSpace(strings.TrimPrefix(line, ChapterMarker))}
			body = body[:0]
			continue
		}
		if cur == nil {
			pre = append(pre, line)
		} else {
			body = append(body, line)
		}
	}
	flush()

	return strings.TrimSpace(strings.Join(pre, "\n")), sections
}

// JoinSections is the inverse of SplitSections
func JoinSections(preamble string, sections []Section) string {
	parts := make([]string, 0, len(sections)+1)
	if preamble != "" {
		parts = append(parts, preamble)
	}
	for _, s := range sections {
		parts = append(parts, FormatSection(s.Title, s.Body))
	}
	return strings.Join(parts, "\n\n")
}

// FormatSection renders one chapter with its heading. Stray headings inside the
// body are demoted so the draft keeps exactly one marker per chapter.
func FormatSection(title, body string) string {
	return ChapterMarker + headingText(title) + "\n\n" + demoteMarkers(strings.TrimSpace(body))
}

// AssembleDraft concatenates chapters in plan order
func AssembleDraft(chapters []models.ChapterText) string {
	sections := make([]Section, len(chapters))
	for i, ch := range chapters {
		sections[i] = Section{Title: ch.Title, Body: ch.Body}
	}
	return JoinSections("", sections)
}

func headingText(title string) string {
	title = strings.TrimLeft(strings.TrimSpace(title), "# ")
	return strings.Join(strings.Fields(title), " ")
}

func demoteMarkers(body string) string {
	if !strings.Contains(body, ChapterMarker) {
		return body
	}
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, ChapterMarker) {
			lines[i] = "#" + line
		}
	}
	return strings.Join(lines, "\n")
}
