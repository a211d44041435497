package story

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lamim/storyforge/internal/util"
	"github.com/lamim/storyforge/pkg/models"
)

// ChapterInput is everything the writer may see for one chapter.
// It carries a single plan entry so later beats cannot leak into the prompt.
type ChapterInput struct {
	Entry        models.ChapterPlanEntry
	ChapterCount int
	Synopsis     string
	Context      string // tail of the rolling summary context
	Genres       string
}

// Writer turns plan entries into prose and condenses prose into summaries
type Writer struct {
	gen      Generator
	prompts  *Prompts
	language string
	wordsMin int
	wordsMax int
	logger   *slog.Logger
}

// NewWriter creates a chapter writer
func NewWriter(gen Generator, prompts *Prompts, language string, wordsMin, wordsMax int, logger *slog.Logger) *Writer {
	return &Writer{
		gen:      gen,
		prompts:  prompts,
		language: language,
		wordsMin: wordsMin,
		wordsMax: wordsMax,
		logger:   logger.With("component", "writer"),
	}
}

// WriteChapter generates one chapter. On failure it returns the placeholder
// chapter with OutcomeFallback together with the error; the caller applies
// its failure policy.
func (w *Writer) WriteChapter(ctx context.Context, in ChapterInput) (models.ChapterText, models.Outcome, error) {
	prompt, err := w.prompts.Chapter(ChapterData{
		Synopsis:     in.Synopsis,
		Index:        in.Entry.Index,
		ChapterCount: in.ChapterCount,
		Title:        in.Entry.Title,
		Events:       in.Entry.Events,
		Context:      in.Context,
		Genres:       in.Genres,
		WordsMin:     w.wordsMin,
		WordsMax:     w.wordsMax,
		Language:     LanguageName(w.language),
	})
	if err != nil {
		return PlaceholderChapter(in.Entry), models.OutcomeFallback, err
	}

	raw, err := w.gen.Generate(ctx, w.prompts.WriterSystem(), prompt)
	if err != nil {
		return PlaceholderChapter(in.Entry), models.OutcomeFallback, fmt.Errorf("chapter %d: %w", in.Entry.Index, err)
	}

	body := stripLeadingHeading(util.CleanGenerated(raw), in.Entry.Title)
	if body == "" {
		return PlaceholderChapter(in.Entry), models.OutcomeFallback, fmt.Errorf("chapter %d: empty body", in.Entry.Index)
	}

	w.logger.Debug("Chapter written", "chapter", in.Entry.Index, "words", len(strings.Fields(body)))
	return models.ChapterText{Index: in.Entry.Index, Title: in.Entry.Title, Body: body}, models.OutcomeOK, nil
}

// Summarize condenses a chapter for the rolling context. The fallback is the
// planned events text so the context never holds raw prose.
func (w *Writer) Summarize(ctx context.Context, chapter models.ChapterText, entry models.ChapterPlanEntry) (string, models.Outcome) {
	if chapter.Fallback {
		return entry.Events, models.OutcomeFallback
	}

	prompt, err := w.prompts.Summary(SummaryData{Title: chapter.Title, Body: chapter.Body})
	if err != nil {
		w.logger.Warn("Summary prompt failed, using planned events", "chapter", chapter.Index, "error", err)
		return entry.Events, models.OutcomeFallback
	}

	raw, err := w.gen.Generate(ctx, "", prompt)
	if err != nil {
		w.logger.Warn("Summary failed, using planned events", "chapter", chapter.Index, "error", err)
		return entry.Events, models.OutcomeFallback
	}

	summary := strings.Join(strings.Fields(util.CleanGenerated(raw)), " ")
	if summary == "" {
		return entry.Events, models.OutcomeFallback
	}
	return summary, models.OutcomeOK
}

// PlaceholderChapter is the substitute body for a chapter that could not be generated
func PlaceholderChapter(entry models.ChapterPlanEntry) models.ChapterText {
	return models.ChapterText{
		Index:    entry.Index,
		Title:    entry.Title,
		Body:     entry.Events,
		Fallback: true,
	}
}

// stripLeadingHeading drops a heading line the model added despite instructions
func stripLeadingHeading(body, title string) string {
	first, rest, found := strings.Cut(body, "\n")
	trimmed := strings.TrimSpace(first)
	isHeading := strings.HasPrefix(trimmed, "#") ||
		strings.EqualFold(strings.Trim(trimmed, "*# "), strings.TrimSpace(title))
	if found && isHeading {
		return strings.TrimSpace(rest)
	}
	return body
}
