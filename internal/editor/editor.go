package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lamim/storyforge/internal/api"
	"github.com/lamim/storyforge/internal/config"
	"github.com/lamim/storyforge/internal/story"
	"github.com/lamim/storyforge/internal/util"
	"github.com/lamim/storyforge/pkg/models"
)

var (
	// ErrCritiqueConsumed is returned when a critique has already been applied by a rewrite
	ErrCritiqueConsumed = errors.New("critique already applied")
	// ErrCritiqueStale is returned when a critique was made for another draft version
	ErrCritiqueStale = errors.New("critique does not match the draft version")
)

// critiqueResponse is the structured critique the editor model is asked for
type critiqueResponse struct {
	AntagonistMotivation models.CriteriaScore `json:"antagonist_motivation" jsonschema_description:"Is the antagonist's motivation clear and believable"`
	EndingImpact         models.CriteriaScore `json:"ending_impact" jsonschema_description:"Does the ending land with emotional impact"`
	Cliches              models.CriteriaScore `json:"cliches" jsonschema_description:"How much clichés weaken the story (5 = none)"`
	Notes                string               `json:"notes" jsonschema_description:"Concrete revision notes"`
}

var critiqueSchema = api.NewJSONSchema[critiqueResponse]("critique", "Editorial critique of a story draft")

// CritiqueData is the template data for [prompt_templates].critique
type CritiqueData struct {
	Draft    string
	Genres   string
	Language string
}

// RewriteData is the template data for [prompt_templates].rewrite
type RewriteData struct {
	Draft    string
	Critique string
	Genres   string
	Language string
}

// Editor runs the critique and rewrite steps of the editing loop
type Editor struct {
	gen       story.Generator
	templates config.PromptTemplates
	logger    *slog.Logger
}

// New creates a new editor
func New(gen story.Generator, templates config.PromptTemplates, logger *slog.Logger) *Editor {
	return &Editor{
		gen:       gen,
		templates: templates,
		logger:    logger.With("component", "editor"),
	}
}

// Critique asks the editor model to assess draft. An unparseable answer is kept
// verbatim as the critique notes.
func (e *Editor) Critique(ctx context.Context, draft models.Draft, genres string) (*models.Critique, error) {
	if draft.IsEmpty() {
		return nil, fmt.Errorf("cannot critique an empty draft")
	}

	prompt, err := util.RenderTemplate(e.templates.Critique, CritiqueData{
		Draft:    draft.Text,
		Genres:   genres,
		Language: story.LanguageName(draft.Language),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render critique template: %w", err)
	}

	raw, err := e.gen.GenerateStructured(ctx, e.templates.EditorSystemPrompt, prompt, critiqueSchema)
	if err != nil {
		return nil, fmt.Errorf("critique generation failed: %w", err)
	}

	critique := &models.Critique{
		ID:           uuid.New().String(),
		DraftVersion: draft.Version,
		Language:     draft.Language,
		CreatedAt:    time.Now().UTC(),
	}

	scores, notes, err := ParseCritique(raw)
	if err != nil {
		e.logger.Warn("Critique was not valid JSON, keeping raw text", "error", err, "length", len(raw))
		critique.Notes = util.CleanGenerated(raw)
		critique.Raw = raw
		critique.Fallback = true
		return critique, nil
	}

	critique.Scores = scores
	critique.Notes = notes
	e.logger.Info("Critique ready",
		"draft_version", draft.Version,
		"average_score", fmt.Sprintf("%.2f", critique.AverageScore()))
	return critique, nil
}

// requiredCriteria are the dimensions every critique must score
var requiredCriteria = []string{
	models.CriterionAntagonistMotivation,
	models.CriterionEndingImpact,
	models.CriterionCliches,
}

// ParseCritique decodes a critique response into per-criterion scores and notes.
// Each required criterion must be present with a score from 1 to 5; other keys
// are ignored.
func ParseCritique(raw string) (map[string]models.CriteriaScore, string, error) {
	var fields map[string]json.RawMessage
	if err := util.DecodeJSON(raw, &fields); err != nil {
		return nil, "", &story.MalformedError{Stage: "critique", Reason: err.Error(), Raw: raw}
	}

	var notes string
	if value, ok := fields["notes"]; ok {
		if err := json.Unmarshal(value, &notes); err != nil {
			return nil, "", &story.MalformedError{Stage: "critique", Reason: "notes is not a string", Raw: raw}
		}
	}

	scores := make(map[string]models.CriteriaScore, len(requiredCriteria))
	for _, key := range requiredCriteria {
		value, ok := fields[key]
		if !ok {
			return nil, "", &story.MalformedError{Stage: "critique", Reason: "missing " + key, Raw: raw}
		}
		var score models.CriteriaScore
		if err := json.Unmarshal(value, &score); err != nil {
			return nil, "", &story.MalformedError{Stage: "critique", Reason: key + " is not a score object", Raw: raw}
		}
		if score.Score < 1 || score.Score > 5 {
			return nil, "", &story.MalformedError{Stage: "critique", Reason: fmt.Sprintf("%s score %d out of range", key, score.Score), Raw: raw}
		}
		score.Reasoning = strings.TrimSpace(score.Reasoning)
		scores[key] = score
	}
	return scores, strings.TrimSpace(notes), nil
}

// Rewrite applies critique to draft and returns the next draft version.
// The critique must be unconsumed and made for exactly this draft version; on
// success it is marked consumed. A failed rewrite leaves the critique usable.
func (e *Editor) Rewrite(ctx context.Context, draft models.Draft, critique *models.Critique, genres string) (models.Draft, error) {
	if critique == nil {
		return draft, fmt.Errorf("rewrite requires a critique")
	}
	if critique.Consumed {
		return draft, ErrCritiqueConsumed
	}
	if critique.DraftVersion != draft.Version || critique.Language != draft.Language {
		return draft, fmt.Errorf("%w: critique is for %s v%d, draft is %s v%d",
			ErrCritiqueStale, critique.Language, critique.DraftVersion, draft.Language, draft.Version)
	}

	prompt, err := util.RenderTemplate(e.templates.Rewrite, RewriteData{
		Draft:    draft.Text,
		Critique: FormatCritique(critique),
		Genres:   genres,
		Language: story.LanguageName(draft.Language),
	})
	if err != nil {
		return draft, fmt.Errorf("failed to render rewrite template: %w", err)
	}

	raw, err := e.gen.Generate(ctx, e.templates.EditorSystemPrompt, prompt)
	if err != nil {
		return draft, fmt.Errorf("rewrite generation failed: %w", err)
	}
	text := util.CleanGenerated(raw)
	if text == "" {
		return draft, fmt.Errorf("rewrite returned no text")
	}

	if before, after := story.CountMarkers(draft.Text), story.CountMarkers(text); before != after {
		e.logger.Warn("Rewrite changed the chapter structure", "markers_before", before, "markers_after", after)
	}

	critique.Consumed = true
	return models.Draft{
		Language: draft.Language,
		Version:  draft.Version + 1,
		Text:     text,
	}, nil
}

// FormatCritique renders a critique as plain text for the rewrite prompt
func FormatCritique(c *models.Critique) string {
	if c.Fallback || len(c.Scores) == 0 {
		return c.Notes
	}

	keys := make([]string, 0, len(c.Scores))
	for k := range c.Scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		s := c.Scores[k]
		fmt.Fprintf(&b, "- %s (%d/5): %s\n", strings.ReplaceAll(k, "_", " "), s.Score, s.Reasoning)
	}
	if c.Notes != "" {
		b.WriteString("\nNotes: ")
		b.WriteString(c.Notes)
	}
	return strings.TrimSpace(b.String())
}
