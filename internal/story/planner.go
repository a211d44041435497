package story

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lamim/storyforge/internal/api"
	"github.com/lamim/storyforge/internal/util"
	"github.com/lamim/storyforge/pkg/models"
)

// FallbackEvents is the beat used for chapters the plan could not provide
const FallbackEvents = "Continue the story."

// planEnvelope is the structured-output shape; strict schemas need an object root
type planEnvelope struct {
	Chapters []models.ChapterPlanEntry `json:"chapters" jsonschema_description:"Chapters in narrative order"`
}

var planSchema = api.NewJSONSchema[planEnvelope]("chapter_plan", "Ordered chapter plan for a serialized story")

// PlanResult is the chapter plan plus how it was obtained
type PlanResult struct {
	Plan    models.ChapterPlan
	Outcome models.Outcome
	// Err is the generation or parse failure behind a fallback or normalized plan
	Err error
}

// Planner produces the synopsis and the chapter plan
type Planner struct {
	gen          Generator
	prompts      *Prompts
	chapterCount int
	language     string
	logger       *slog.Logger
}

// NewPlanner creates a planner for stories of chapterCount chapters written in language
func NewPlanner(gen Generator, prompts *Prompts, chapterCount int, language string, logger *slog.Logger) *Planner {
	return &Planner{
		gen:          gen,
		prompts:      prompts,
		chapterCount: chapterCount,
		language:     language,
		logger:       logger.With("component", "planner"),
	}
}

// Plan runs Synopsis then Chapters. A missing synopsis is fatal; a bad plan is not.
func (p *Planner) Plan(ctx context.Context, req models.StoryRequest) (string, PlanResult, error) {
	synopsis, err := p.Synopsis(ctx, req)
	if err != nil {
		return "", PlanResult{}, err
	}
	return synopsis, p.Chapters(ctx, synopsis, req), nil
}

// Synopsis generates the story synopsis
func (p *Planner) Synopsis(ctx context.Context, req models.StoryRequest) (string, error) {
	prompt, err := p.prompts.Synopsis(SynopsisData{
		Theme:    req.Theme,
		Niche:    req.Niche,
		Genres:   req.GenreMix(),
		Language: LanguageName(p.language),
	})
	if err != nil {
		return "", err
	}

	raw, err := p.gen.Generate(ctx, p.prompts.WriterSystem(), prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEmptySynopsis, err)
	}
	synopsis := util.CleanGenerated(raw)
	if synopsis == "" {
		return "", ErrEmptySynopsis
	}

	p.logger.Info("Synopsis generated", "chars", len([]rune(synopsis)))
	return synopsis, nil
}

// Chapters asks for a structured plan and always returns exactly chapterCount entries
func (p *Planner) Chapters(ctx context.Context, synopsis string, req models.StoryRequest) PlanResult {
	prompt, err := p.prompts.Plan(PlanData{
		Synopsis:      synopsis,
		Genres:        req.GenreMix(),
		ChapterCount:  p.chapterCount,
		ClimaxChapter: max(1, p.chapterCount-1),
	})
	if err != nil {
		return p.fallback(err)
	}

	raw, err := p.gen.GenerateStructured(ctx, p.prompts.WriterSystem(), prompt, planSchema)
	if err != nil {
		return p.fallback(fmt.Errorf("plan generation failed: %w", err))
	}

	entries, err := ParsePlan(raw)
	if err != nil {
		return p.fallback(err)
	}

	plan, outcome := NormalizePlan(entries, p.chapterCount)
	result := PlanResult{Plan: plan, Outcome: outcome}
	if outcome == models.OutcomeNormalized {
		result.Err = fmt.Errorf("plan had %d chapters, expected %d", len(entries), p.chapterCount)
		p.logger.Warn("Chapter plan normalized", "received", len(entries), "expected", p.chapterCount)
	} else {
		p.logger.Info("Chapter plan ready", "chapters", len(plan))
	}
	return result
}

func (p *Planner) fallback(err error) PlanResult {
	p.logger.Warn("Using fallback chapter plan", "error", err)
	return PlanResult{Plan: FallbackPlan(p.chapterCount), Outcome: models.OutcomeFallback, Err: err}
}

// ParsePlan strictly decodes a plan response: a JSON array of entries or an
// object with a "chapters" array. Every entry needs a title or events.
func ParsePlan(raw string) ([]models.ChapterPlanEntry, error) {
	cleaned := util.SanitizeJSON(util.ExtractJSON(util.StripThinkTags(raw)))
	if cleaned == "" {
		return nil, &MalformedError{Stage: "plan", Reason: "empty response", Raw: raw}
	}

	var entries []models.ChapterPlanEntry
	if strings.HasPrefix(cleaned, "{") {
		var env planEnvelope
		if err := json.Unmarshal([]byte(cleaned), &env); err != nil {
			return nil, &MalformedError{Stage: "plan", Reason: err.Error(), Raw: raw}
		}
		entries = env.Chapters
	} else if err := json.Unmarshal([]byte(cleaned), &entries); err != nil {
		return nil, &MalformedError{Stage: "plan", Reason: err.Error(), Raw: raw}
	}

	if len(entries) == 0 {
		return nil, &MalformedError{Stage: "plan", Reason: "no chapters", Raw: raw}
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Title) == "" && strings.TrimSpace(e.Events) == "" {
			return nil, &MalformedError{Stage: "plan", Reason: fmt.Sprintf("chapter %d has neither title nor events", i+1), Raw: raw}
		}
	}
	return entries, nil
}

// NormalizePlan truncates or pads entries to n and renumbers them 1..n
func NormalizePlan(entries []models.ChapterPlanEntry, n int) (models.ChapterPlan, models.Outcome) {
	outcome := models.OutcomeOK
	if len(entries) != n {
		outcome = models.OutcomeNormalized
	}

	plan := FallbackPlan(n)
	for i := 0; i < n && i < len(entries); i++ {
		e := entries[i]
		if title := strings.TrimSpace(e.Title); title != "" {
			plan[i].Title = title
		}
		if events := strings.TrimSpace(e.Events); events != "" {
			plan[i].Events = events
		}
	}
	return plan, outcome
}

// FallbackPlan builds n generic entries
func FallbackPlan(n int) models.ChapterPlan {
	plan := make(models.ChapterPlan, n)
	for i := range plan {
		plan[i] = models.ChapterPlanEntry{
			Index:  i + 1,
			Title:  fmt.Sprintf("Chapter %d", i+1),
			Events: FallbackEvents,
		}
	}
	return plan
}
