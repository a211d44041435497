package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// StoryRequest is the user input that seeds a pipeline run
type StoryRequest struct {
	Theme  string   `json:"theme" validate:"required,max=500"`
	Niche  string   `json:"niche" validate:"required,max=100"`
	Genres []string `json:"genres" validate:"required,min=1,max=8,dive,required,max=60"`
}

// Validate checks the request fields and trims surrounding whitespace
func (r *StoryRequest) Validate() error {
	r.Theme = strings.TrimSpace(r.Theme)
	r.Niche = strings.TrimSpace(r.Niche)
	genres := make([]string, 0, len(r.Genres))
	for _, g := range r.Genres {
		if g = strings.TrimSpace(g); g != "" {
			genres = append(genres, g)
		}
	}
	r.Genres = genres

	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid story request: %w", err)
	}
	return nil
}

// GenreMix returns the genres as a single comma separated tone instruction
func (r StoryRequest) GenreMix() string {
	return strings.Join(r.Genres, ", ")
}

// Outcome tells callers whether a stage produced its own result or a substitute
type Outcome string

const (
	// OutcomeOK means the stage output was parsed and used as-is
	OutcomeOK Outcome = "ok"
	// OutcomeNormalized means the output was usable but padded or truncated to the expected shape
	OutcomeNormalized Outcome = "normalized"
	// OutcomeFallback means the stage failed and a placeholder was substituted
	OutcomeFallback Outcome = "fallback"
)

// ChapterPlanEntry is a single planned chapter
type ChapterPlanEntry struct {
	Index  int    `json:"chapter_num" jsonschema_description:"1-based chapter number in narrative order"`
	Title  string `json:"title" jsonschema_description:"Catchy chapter title"`
	Events string `json:"events" jsonschema_description:"What exactly happens in this chapter: key events, clues found, actions"`
}

// ChapterPlan is the ordered list of planned chapters
type ChapterPlan []ChapterPlanEntry

// ChapterText is the written prose of one chapter
type ChapterText struct {
	Index    int    `json:"index"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Summary  string `json:"summary"`
	Fallback bool   `json:"fallback,omitempty"`
}

// Draft is a full story text in one language
type Draft struct {
	Language string `json:"language"`
	Version  int    `json:"version"`
	Text     string `json:"text"`
}

// IsEmpty reports whether the draft has no text
func (d Draft) IsEmpty() bool {
	return strings.TrimSpace(d.Text) == ""
}

// VisualPromptSet holds one sub-sequence of image prompts per chapter, in chapter order
type VisualPromptSet [][]string

// Flatten concatenates the per-chapter prompts in chapter order
func (v VisualPromptSet) Flatten() []string {
	var all []string
	for _, chapter := range v {
		all = append(all, chapter...)
	}
	return all
}

// Critique dimension keys
const (
	CriterionAntagonistMotivation = "antagonist_motivation"
	CriterionEndingImpact         = "ending_impact"
	CriterionCliches              = "cliches"
)

// CriteriaScore represents the score and reasoning for a single critique dimension
type CriteriaScore struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// Critique is editorial feedback bound to one draft version
type Critique struct {
	ID           string                   `json:"id"`
	DraftVersion int                      `json:"draft_version"`
	Language     string                   `json:"language"`
	Scores       map[string]CriteriaScore `json:"scores,omitempty"`
	Notes        string                   `json:"notes"`
	Raw          string                   `json:"raw,omitempty"`
	Fallback     bool                     `json:"fallback,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
	Consumed     bool                     `json:"consumed"`
}

// AverageScore returns the mean score across all dimensions
func (c *Critique) AverageScore() float64 {
	if len(c.Scores) == 0 {
		return 0
	}
	sum := 0
	for _, s := range c.Scores {
		sum += s.Score
	}
	return float64(sum) / float64(len(c.Scores))
}

// WorkflowStatus is the publishing state of a saved story
type WorkflowStatus string

const (
	StatusReady           WorkflowStatus = "ready"
	StatusAwaitingPublish WorkflowStatus = "awaiting_publish"
	StatusPublished       WorkflowStatus = "published"
)

var statusOrder = map[WorkflowStatus]int{
	StatusReady:           0,
	StatusAwaitingPublish: 1,
	StatusPublished:       2,
}

// ParseWorkflowStatus accepts the canonical names plus "downloaded" for awaiting_publish
func ParseWorkflowStatus(s string) (WorkflowStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ready":
		return StatusReady, nil
	case "awaiting_publish", "awaiting-publish", "downloaded":
		return StatusAwaitingPublish, nil
	case "published":
		return StatusPublished, nil
	}
	return "", fmt.Errorf("unknown workflow status %q (want ready, awaiting_publish or published)", s)
}

// CanTransitionTo reports whether next is the immediate forward step from s
func (s WorkflowStatus) CanTransitionTo(next WorkflowStatus) bool {
	from, ok := statusOrder[s]
	if !ok {
		return false
	}
	to, ok := statusOrder[next]
	if !ok {
		return false
	}
	return to == from+1
}

// StoryRecord is the persisted form of an approved story
type StoryRecord struct {
	ID            string         `json:"id"`
	Niche         string         `json:"niche"`
	Genres        []string       `json:"genres"`
	Theme         string         `json:"theme"`
	Synopsis      string         `json:"synopsis"`
	DraftSource   string         `json:"draft_source"`
	DraftTarget   string         `json:"draft_target"`
	SourceLang    string         `json:"source_lang"`
	TargetLang    string         `json:"target_lang"`
	VisualPrompts []string       `json:"visual_prompts"`
	CreatedAt     time.Time      `json:"created_at"`
	Status        WorkflowStatus `json:"status"`
}

// RunStats tracks statistics for a pipeline run
type RunStats struct {
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	PlanOutcome      Outcome       `json:"plan_outcome"`
	Chapters         int           `json:"chapters"`
	FallbackChapters int           `json:"fallback_chapters"`
	FallbackPrompts  int           `json:"fallback_prompts"`
	FallbackSections int           `json:"fallback_sections"`
	CritiqueRounds   int           `json:"critique_rounds"`
	TotalDuration    time.Duration `json:"total_duration"`
}
