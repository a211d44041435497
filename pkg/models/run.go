package models

import (
	"strings"
	"time"
)

// RollingContext accumulates one summary fragment per completed chapter
type RollingContext struct {
	Fragments []string `json:"fragments"`
}

// Append adds the summary of the chapter that was just written
func (rc *RollingContext) Append(summary string) {
	rc.Fragments = append(rc.Fragments, strings.TrimSpace(summary))
}

// Len returns the number of fragments
func (rc *RollingContext) Len() int {
	return len(rc.Fragments)
}

// Tail returns the trailing window of the joined summaries, at most maxRunes long.
// A non-positive maxRunes returns the full history.
func (rc *RollingContext) Tail(maxRunes int) string {
	joined := strings.Join(rc.Fragments, "\n")
	if maxRunes <= 0 {
		return joined
	}
	runes := []rune(joined)
	if len(runes) <= maxRunes {
		return joined
	}
	return string(runes[len(runes)-maxRunes:])
}

// RunState is the position of a run in the critique/rewrite cycle
type RunState string

const (
	StateDrafted   RunState = "drafted"
	StateCritiqued RunState = "critiqued"
	StateRewritten RunState = "rewritten"
)

// PipelineRun owns all intermediate state of a single story generation.
// A run is not safe for concurrent use; concurrent stories need separate runs.
type PipelineRun struct {
	ID        string       `json:"id"`
	Request   StoryRequest `json:"request"`
	CreatedAt time.Time    `json:"created_at"`

	Synopsis    string         `json:"synopsis"`
	Plan        ChapterPlan    `json:"plan"`
	PlanOutcome Outcome        `json:"plan_outcome"`
	Context     RollingContext `json:"context"`
	Chapters    []ChapterText  `json:"chapters"`

	Source  Draft           `json:"source"`
	Target  Draft           `json:"target"`
	Prompts VisualPromptSet `json:"prompts"`

	State     RunState   `json:"state"`
	Critiques []Critique `json:"critiques,omitempty"`

	// StoryID is the library id once the run has been persisted
	StoryID string `json:"story_id,omitempty"`

	Stats RunStats `json:"stats"`
}

// NewPipelineRun creates an empty run for the given request
func NewPipelineRun(id string, req StoryRequest) *PipelineRun {
	now := time.Now()
	return &PipelineRun{
		ID:        id,
		Request:   req,
		CreatedAt: now,
		Stats:     RunStats{StartTime: now},
	}
}

// WorkingDraft returns the draft the editing loop operates on: the translation when present
func (r *PipelineRun) WorkingDraft() *Draft {
	if !r.Target.IsEmpty() {
		return &r.Target
	}
	return &r.Source
}

// PendingCritique returns the latest critique if it has not been applied yet
func (r *PipelineRun) PendingCritique() *Critique {
	if len(r.Critiques) == 0 {
		return nil
	}
	last := &r.Critiques[len(r.Critiques)-1]
	if last.Consumed {
		return nil
	}
	return last
}

// Record converts the run into a persistable story record
func (r *PipelineRun) Record() StoryRecord {
	return StoryRecord{
		ID:            r.StoryID,
		Niche:         r.Request.Niche,
		Genres:        append([]string{}, r.Request.Genres...),
		Theme:         r.Request.Theme,
		Synopsis:      r.Synopsis,
		DraftSource:   r.Source.Text,
		DraftTarget:   r.Target.Text,
		SourceLang:    r.Source.Language,
		TargetLang:    r.Target.Language,
		VisualPrompts: r.Prompts.Flatten(),
		CreatedAt:     time.Now().UTC(),
		Status:        StatusReady,
	}
}
