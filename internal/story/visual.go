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

// FallbackVisualPrompt fills missing image prompts
const FallbackVisualPrompt = "Cinematic scene of the story, detailed, 8k"

// VisualExtractor derives image prompts from chapter prose
type VisualExtractor struct {
	gen     Generator
	prompts *Prompts
	k       int
	logger  *slog.Logger
}

// NewVisualExtractor creates an extractor returning k prompts per chapter
func NewVisualExtractor(gen Generator, prompts *Prompts, k int, logger *slog.Logger) *VisualExtractor {
	return &VisualExtractor{
		gen:     gen,
		prompts: prompts,
		k:       k,
		logger:  logger.With("component", "visuals"),
	}
}

// Extract returns exactly k non-empty prompts for one chapter
func (v *VisualExtractor) Extract(ctx context.Context, chapter models.ChapterText, niche string) ([]string, models.Outcome) {
	prompt, err := v.prompts.Visual(VisualData{
		Title:       chapter.Title,
		Body:        chapter.Body,
		PromptCount: v.k,
		Niche:       niche,
	})
	if err != nil {
		v.logger.Warn("Visual prompt template failed", "chapter", chapter.Index, "error", err)
		return PadPrompts(nil, v.k), models.OutcomeFallback
	}

	raw, err := v.gen.Generate(ctx, "", prompt)
	if err != nil {
		v.logger.Warn("Visual prompt generation failed", "chapter", chapter.Index, "error", err)
		return PadPrompts(nil, v.k), models.OutcomeFallback
	}

	prompts, err := ParseVisualPrompts(raw, v.k)
	if err != nil {
		v.logger.Debug("Visual prompts padded", "chapter", chapter.Index, "got", len(prompts), "error", err)
		if len(prompts) == 0 {
			return PadPrompts(nil, v.k), models.OutcomeFallback
		}
		return PadPrompts(prompts, v.k), models.OutcomeNormalized
	}
	return prompts, models.OutcomeOK
}

// ExtractAll runs Extract for every chapter with at most concurrency calls in
// flight. The result keeps chapter order; the count is of chapters that were
// not OutcomeOK.
func (v *VisualExtractor) ExtractAll(ctx context.Context, chapters []models.ChapterText, niche string, concurrency int, onDone func()) (models.VisualPromptSet, int, error) {
	set := make(models.VisualPromptSet, len(chapters))
	var degraded atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, concurrency))
	for i, ch := range chapters {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			prompts, outcome := v.Extract(gctx, ch, niche)
			set[i] = prompts
			if outcome != models.OutcomeOK {
				degraded.Add(1)
			}
			if onDone != nil {
				onDone()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, fmt.Errorf("visual extraction interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return set, int(degraded.Load()), nil
}

// ParseVisualPrompts splits a '|' delimited response into at most k prompts.
// Fewer than k usable prompts is a *MalformedError; the partial prompts are
// still returned so the caller can pad them.
func ParseVisualPrompts(raw string, k int) ([]string, error) {
	text := util.StripThinkTags(raw)

	var prompts []string
	for _, part := range strings.Split(text, "|") {
		p := strings.Join(strings.Fields(part), " ")
		if p == "" {
			continue
		}
		prompts = append(prompts, p)
		if len(prompts) == k {
			break
		}
	}

	if len(prompts) < k {
		return prompts, &MalformedError{
			Stage:  "visual prompts",
			Reason: fmt.Sprintf("got %d prompts, expected %d", len(prompts), k),
			Raw:    raw,
		}
	}
	return prompts, nil
}

// PadPrompts fills prompts up to k with the generic fallback prompt
func PadPrompts(prompts []string, k int) []string {
	out := make([]string, 0, k)
	out = append(out, prompts...)
	for len(out) < k {
		out = append(out, FallbackVisualPrompt)
	}
	return out[:k]
}
