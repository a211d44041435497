package models

import "time"

// CheckpointPhase represents the current phase of a pipeline run
type CheckpointPhase string

const (
	PhaseSynopsis    CheckpointPhase = "synopsis"
	PhasePlan        CheckpointPhase = "plan"
	PhaseChapters    CheckpointPhase = "chapters"
	PhaseVisuals     CheckpointPhase = "visuals"
	PhaseTranslation CheckpointPhase = "translation"
	PhaseComplete    CheckpointPhase = "complete"
)

// Checkpoint represents the saved state of a pipeline run
type Checkpoint struct {
	// Session identification
	SessionID   string    `json:"session_id"`
	CreatedAt   time.Time `json:"created_at"`
	LastSavedAt time.Time `json:"last_saved_at"`

	CurrentPhase CheckpointPhase `json:"current_phase"`
	Request      StoryRequest    `json:"request"`

	// Phase 1: Synopsis
	Synopsis string `json:"synopsis"`

	// Phase 2: Chapter plan
	PlanComplete bool        `json:"plan_complete"`
	Plan         ChapterPlan `json:"plan"`
	PlanOutcome  Outcome     `json:"plan_outcome"`

	// Phase 3: Chapters written so far, in plan order, and their summaries
	Chapters []ChapterText  `json:"chapters"`
	Context  RollingContext `json:"context"`

	// Phase 4: Visual prompts
	VisualsComplete bool            `json:"visuals_complete"`
	Prompts         VisualPromptSet `json:"prompts"`

	// Phase 5: Translation
	TranslationComplete bool  `json:"translation_complete"`
	Source              Draft `json:"source"`
	Target              Draft `json:"target"`

	Stats RunStats `json:"stats"`

	// StoryID is set once the run has a library record
	StoryID string `json:"story_id,omitempty"`

	// Configuration snapshot (for validation)
	ConfigHash string `json:"config_hash"`
}
