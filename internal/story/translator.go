package story

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/lamim/storyforge/internal/util"
	"github.com/lamim/storyforge/pkg/models"
)

// TranslationResult is a translated draft plus how many sections kept their source text
type TranslationResult struct {
	Draft            models.Draft
	Outcome          models.Outcome
	FallbackSections int
}

// Translator translates drafts chapter by chapter
type Translator struct {
	gen         Generator
	prompts     *Prompts
	concurrency int
	logger      *slog.Logger
}

// NewTranslator creates a translator translating up to concurrency sections at once
func NewTranslator(gen Generator, prompts *Prompts, concurrency int, logger *slog.Logger) *Translator {
	return &Translator{
		gen:         gen,
		prompts:     prompts,
		concurrency: max(1, concurrency),
		logger:      logger.With("component", "translator"),
	}
}

// Translate translates every chapter section of draft into target. Headings are
// re-imposed on reassembly so the output has as many chapter markers as the input.
// A section that fails keeps its source text.
func (t *Translator) Translate(ctx context.Context, draft models.Draft, target string, onSection func()) (TranslationResult, error) {
	preamble, sections := SplitSections(draft.Text)
	out := make([]Section, len(sections))
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, sec := range sections {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			translated, err := t.translateSection(gctx, sec, draft.Language, target)
			if err != nil {
				t.logger.Warn("Section translation failed, keeping source text", "section", i+1, "error", err)
				failed.Add(1)
				translated = sec
			}
			out[i] = translated
			if onSection != nil {
				onSection()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TranslationResult{}, fmt.Errorf("translation interrupted: %w", err)
	}

	if preamble != "" {
		if tp, err := t.translateText(ctx, preamble, draft.Language, target); err == nil {
			preamble = tp
		} else {
			failed.Add(1)
		}
	}

	result := TranslationResult{
		Draft: models.Draft{
			Language: target,
			Version:  1,
			Text:     JoinSections(preamble, out),
		},
		FallbackSections: int(failed.Load()),
		Outcome:          models.OutcomeOK,
	}
	switch {
	case result.FallbackSections == 0:
	case result.FallbackSections >= len(sections):
		result.Outcome = models.OutcomeFallback
	default:
		result.Outcome = models.OutcomeNormalized
	}

	t.logger.Info("Translation complete",
		"sections", len(sections),
		"fallback_sections", result.FallbackSections,
		"target", target)
	return result, nil
}

// translateSection translates heading and body together so the title reads
// naturally, then splits them back apart
func (t *Translator) translateSection(ctx context.Context, sec Section, source, target string) (Section, error) {
	translated, err := t.translateText(ctx, FormatSection(sec.Title, sec.Body), source, target)
	if err != nil {
		return Section{}, err
	}

	heading, rest, ok := cutHeading(translated)
	if !ok {
		return Section{}, fmt.Errorf("translation lost the chapter heading")
	}
	title := headingText(heading)
	if title == "" {
		return Section{}, fmt.Errorf("translation lost the chapter title")
	}
	if strings.TrimSpace(rest) == "" && strings.TrimSpace(sec.Body) != "" {
		return Section{}, fmt.Errorf("translation lost the chapter body")
	}
	return Section{Title: title, Body: strings.TrimSpace(rest)}, nil
}

// cutHeading finds the first heading line and returns it with everything after.
// Lines before the heading are model chatter and are dropped.
func cutHeading(text string) (heading, rest string, ok bool) {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		line = strings.Trim(strings.TrimSpace(line), "*")
		if strings.HasPrefix(line, "#") {
			return line, strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", "", false
}

func (t *Translator) translateText(ctx context.Context, text, source, target string) (string, error) {
	prompt, err := t.prompts.Translation(TranslationData{
		Text:           text,
		SourceLanguage: LanguageName(source),
		TargetLanguage: LanguageName(target),
	})
	if err != nil {
		return "", err
	}
	raw, err := t.gen.Generate(ctx, "", prompt)
	if err != nil {
		return "", err
	}
	out := util.CleanGenerated(raw)
	if out == "" {
		return "", fmt.Errorf("empty translation")
	}
	return out, nil
}
